// Package entity は顧客データのドメインモデルを定義します。
package entity

import "fmt"

// Customer は入力 CSV の 1 行と customers テーブルの 1 行に対応する顧客レコードです。
// ID 以外の項目は入力の文字列をそのまま保持します。
type Customer struct {
	ID        int
	FirstName string
	LastName  string
	Email     string
	Gender    string
	ContactNo string
	Country   string
	Dob       string
}

func (c *Customer) String() string {
	return fmt.Sprintf("Customer{ID: %d, FirstName: %s, LastName: %s, Email: %s, Gender: %s, ContactNo: %s, Country: %s, Dob: %s}",
		c.ID, c.FirstName, c.LastName, c.Email, c.Gender, c.ContactNo, c.Country, c.Dob)
}
