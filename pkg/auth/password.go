package auth

import "golang.org/x/crypto/bcrypt"

// 用户不存在时也做一次比对，避免通过响应时间区分"账号不存在"和"密码错误"
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unirun-dummy-password"), bcrypt.DefaultCost)

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// CheckDummy 消耗与一次真实比对相同的时间，结果恒为 false
func CheckDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
