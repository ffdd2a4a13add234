package mcmodel

import "time"

type User struct {
	ID        int    `json:"id"`
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Email     string `json:"email" gorm:"uniqueIndex;size:255"`
	ApiToken  string `json:"-" gorm:"index;size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}
