package model

// All 需要建表的全部实体，数据库初始化和测试共用
func All() []interface{} {
	return []interface{}{
		&User{},
		&Order{},
		&PointRecord{},
		&Message{},
		&Review{},
		&OutboxMessage{},
	}
}
