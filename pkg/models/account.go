package models

// User is the account holder as returned at login.
type User struct {
	ID         string `json:"id" yaml:"id"`
	Username   string `json:"username" yaml:"username"`
	Phone      string `json:"phone,omitempty" yaml:"phone,omitempty"`
	InviteCode string `json:"inviteCode,omitempty" yaml:"invite_code,omitempty"`
	VIPLevel   int    `json:"vipLevel" yaml:"vip_level"`
}

// Profile is the dashboard view of an account.
type Profile struct {
	User            User    `json:"user"`
	Balance         float64 `json:"balance"`
	Commission      float64 `json:"commission"`
	TodayCommission float64 `json:"todayCommission"`
	Frozen          float64 `json:"frozen"`
	CompletedToday  int     `json:"completedToday"`
	DailyLimit      int     `json:"dailyLimit"`
	CreditScore     int     `json:"creditScore"`
}

// Balance is the funds snapshot used by the header and the pre-submit check.
type Balance struct {
	Balance    float64 `json:"balance"`
	Commission float64 `json:"commission"`
	Frozen     float64 `json:"frozen"`
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdraw   TransactionType = "withdraw"
	TxCommission TransactionType = "commission"
)

// TransactionStatus is the processing state of a ledger entry.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxRejected  TransactionStatus = "rejected"
)

// Transaction is one deposit, withdrawal or commission credit.
type Transaction struct {
	ID        string            `json:"id"`
	Type      TransactionType   `json:"type"`
	Amount    float64           `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Method    string            `json:"method,omitempty"`
	Address   string            `json:"address,omitempty"`
	CreatedAt string            `json:"createdAt"`
}

// VIPLevel describes one server-defined account tier.
type VIPLevel struct {
	Level          int     `json:"level"`
	Name           string  `json:"name"`
	CommissionRate float64 `json:"commissionRate"`
	DailyTasks     int     `json:"dailyTasks"`
	MinBalance     float64 `json:"minBalance"`
	WithdrawLimit  float64 `json:"withdrawLimit"`
}
