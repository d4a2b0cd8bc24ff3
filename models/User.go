package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payout destination methods supported for hosts.
const (
	PayoutMethodBankAccount = "bank_account"
	PayoutMethodMobileMoney = "mobile_money"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	PhoneNumber         string         `json:"phoneNumber"`
	Password            string         `json:"-"`
	AvatarURL           string         `json:"avatarURL"`
	Listings            []Listing      `json:"listings" gorm:"foreignKey:HostID;references:ID"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, host, admin, super_admin

	// Host payout profile. PayoutMethod selects which variant is in use;
	// the matching fields must be complete before a payout can be released.
	PayoutMethod        string `json:"payoutMethod" gorm:"type:varchar(20)"` // bank_account, mobile_money
	BankAccountName     string `json:"bankAccountName"`
	BankAccountNumber   string `json:"bankAccountNumber"`
	BankName            string `json:"bankName"`
	MobileMoneyNumber   string `json:"mobileMoneyNumber"`
	MobileMoneyProvider string `json:"mobileMoneyProvider"`
}

// Custom JSON marshaling so PushTokens renders as an array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
