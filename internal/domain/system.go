package domain

import (
	"time"
)

// AdminUser grants administrator rights to an identity of the hosted auth service
type AdminUser struct {
	ID        int64     `json:"id,string"`
	UserID    string    `json:"user_id" gorm:"size:64;uniqueIndex"`
	Email     string    `json:"email" gorm:"size:255"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (AdminUser) TableName() string {
	return "admin_users"
}

type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `json:"opr_name"`
	OprIp     string    `json:"opr_ip"`
	OptAction string    `json:"opt_action" gorm:"index"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `json:"opt_time" gorm:"index"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}
