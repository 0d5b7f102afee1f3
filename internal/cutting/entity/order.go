package entity

import (
	"time"
)

// Order 生产订单
// order_start_date 创建后不可修改，order_finish_date 可通过接口修改
type Order struct {
	ID              string     `json:"order_id" gorm:"primaryKey;size:36"`
	OrderNumber     string     `json:"order_number" gorm:"size:64;not null;uniqueIndex"`
	StyleNumber     string     `json:"style_number" gorm:"size:64;not null"`
	CustomerName    string     `json:"customer_name,omitempty" gorm:"size:128"`
	OrderStartDate  *time.Time `json:"order_start_date,omitempty"`
	OrderFinishDate *time.Time `json:"order_finish_date,omitempty"`
	Note            string     `json:"note,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// 关联
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单明细（颜色 x 尺码 x 数量），订单创建后不可修改
type OrderItem struct {
	ID       string `json:"item_id" gorm:"primaryKey;size:36"`
	OrderID  string `json:"order_id" gorm:"size:36;not null;index"`
	LineNo   int    `json:"line_no" gorm:"not null;default:0"` // 明细行号，决定矩阵颜色/尺码的首次出现顺序
	Color    string `json:"color" gorm:"size:64;not null"`
	Size     string `json:"size" gorm:"size:32;not null"`
	Quantity int    `json:"quantity" gorm:"not null"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
