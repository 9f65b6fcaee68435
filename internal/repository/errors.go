package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKey 唯一索引冲突
// 开启 TranslateError 后各驱动都会返回 gorm.ErrDuplicatedKey，字符串匹配兜底未开启的连接
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// ErrTxRequired 行锁读取和余额、信用分的修改只能在事务内进行，tx 为空时直接拒绝
var ErrTxRequired = errors.New("该操作必须在事务内执行")

// orDefault 只读和单条写入的方法 tx 可以为空，此时使用默认连接
func orDefault(tx, db *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}
