// Пакет model — доменные модели api-module.
package model

import "time"

// Роли пользователей.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ValidRole проверяет, входит ли роль в допустимый набор.
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

// User — зарегистрированный пользователь.
// Хранится в таблице users; учётная запись в Identity Provider
// связана через CognitoID (sub из JWT).
type User struct {
	// ID — внутренний идентификатор (bigserial)
	ID int64 `json:"id"`
	// Email — адрес электронной почты (уникальный)
	Email string `json:"email"`
	// Role — роль (customer, admin)
	Role string `json:"role"`
	// CompanyName — название организации
	CompanyName string `json:"companyName"`
	// PhoneNumber — номер телефона
	PhoneNumber string `json:"phoneNumber"`
	// JoinDate — дата регистрации
	JoinDate time.Time `json:"joinDate"`
	// CognitoID — sub учётной записи в Identity Provider (уникальный)
	CognitoID string `json:"cognitoId"`
}

// UserUpdate — частичное обновление пользователя.
// nil-поля не изменяются.
type UserUpdate struct {
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	CompanyName *string `json:"companyName"`
	PhoneNumber *string `json:"phoneNumber"`
}

// Empty возвращает true, если обновление не содержит ни одного поля.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Role == nil && u.CompanyName == nil && u.PhoneNumber == nil
}
