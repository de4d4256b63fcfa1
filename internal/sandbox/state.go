package sandbox

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	errUserExists      = errors.New("username is already taken")
	errBadCredentials  = errors.New("invalid username or password")
	errRecordNotFound  = errors.New("task record not found")
	errDailyLimit      = errors.New("daily task limit reached")
	errComboLocked     = errors.New("complete the current order of this combo first")
	errAlreadyComplete = errors.New("task record is already completed")
)

// StartingBalance is credited to every new account.
const StartingBalance = 100

// comboEvery makes every n-th task assignment a combo.
const comboEvery = 3

var vipLevels = []models.VIPLevel{
	{Level: 1, Name: "Bronze", CommissionRate: 0.004, DailyTasks: 40, MinBalance: 0, WithdrawLimit: 5000},
	{Level: 2, Name: "Silver", CommissionRate: 0.006, DailyTasks: 50, MinBalance: 500, WithdrawLimit: 20000},
	{Level: 3, Name: "Gold", CommissionRate: 0.008, DailyTasks: 60, MinBalance: 2000, WithdrawLimit: 50000},
	{Level: 4, Name: "Platinum", CommissionRate: 0.01, DailyTasks: 80, MinBalance: 10000, WithdrawLimit: 200000},
}

var catalog = []models.Product{
	{ID: "p-001", Name: "Wireless Earbuds", Price: 39.90},
	{ID: "p-002", Name: "Smart Watch", Price: 129.00},
	{ID: "p-003", Name: "Espresso Machine", Price: 249.50},
	{ID: "p-004", Name: "Desk Lamp", Price: 24.99},
	{ID: "p-005", Name: "Mechanical Keyboard", Price: 89.00},
	{ID: "p-006", Name: "Noise Cancelling Headphones", Price: 199.00},
	{ID: "p-007", Name: "Backpack", Price: 59.90},
}

type account struct {
	user            models.User
	password        string
	balance         float64
	commission      float64
	todayCommission float64
	frozen          float64
	starts          int
	records         []*models.TaskRecord
	transactions    []models.Transaction
}

// State is the in-memory data of the sandbox backend. Safe for concurrent use.
type State struct {
	mu       sync.Mutex
	accounts map[string]*account // by user id
	byName   map[string]string   // username -> user id
	now      func() time.Time
}

// NewState creates an empty state using now as its clock (time.Now if nil).
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		accounts: make(map[string]*account),
		byName:   make(map[string]string),
		now:      now,
	}
}

func (s *State) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *State) register(username, password, invite string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.byName[key]; ok {
		return models.User{}, errUserExists
	}
	u := models.User{
		ID:         uuid.NewString(),
		Username:   username,
		InviteCode: invite,
		VIPLevel:   1,
	}
	s.accounts[u.ID] = &account{user: u, password: password, balance: StartingBalance}
	s.byName[key] = u.ID
	return u, nil
}

func (s *State) login(username, password string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[strings.ToLower(username)]
	if !ok || s.accounts[id].password != password {
		return models.User{}, errBadCredentials
	}
	return s.accounts[id].user, nil
}

func (s *State) account(userID string) (*account, bool) {
	a, ok := s.accounts[userID]
	return a, ok
}

func (s *State) profile(userID string) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return models.Profile{}, false
	}
	completed := 0
	for _, r := range a.records {
		if r.IsCompleted() {
			completed++
		}
	}
	return models.Profile{
		User:            a.user,
		Balance:         round2(a.balance),
		Commission:      round2(a.commission),
		TodayCommission: round2(a.todayCommission),
		Frozen:          round2(a.frozen),
		CompletedToday:  completed,
		DailyLimit:      levelOf(a.user.VIPLevel).DailyTasks,
		CreditScore:     100,
	}, true
}

func (s *State) balance(userID string) (models.Balance, bool) {
	p, ok := s.profile(userID)
	if !ok {
		return models.Balance{}, false
	}
	return models.Balance{Balance: p.Balance, Commission: p.Commission, Frozen: p.Frozen}, true
}

func (s *State) transactions(userID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return nil
	}
	out := make([]models.Transaction, len(a.transactions))
	for i := range a.transactions {
		out[i] = a.transactions[len(a.transactions)-1-i]
	}
	return out
}

func (s *State) records(userID string) []models.TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return nil
	}
	out := make([]models.TaskRecord, len(a.records))
	for i, r := range a.records {
		out[i] = *r
	}
	return out
}

// startTask assigns new work. Every comboEvery-th assignment is a combo of
// two or three members whose prices are debited immediately.
func (s *State) startTask(userID string) ([]models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return nil, errBadCredentials
	}
	if len(a.records) >= levelOf(a.user.VIPLevel).DailyTasks {
		return nil, errDailyLimit
	}

	a.starts++
	rate := levelOf(a.user.VIPLevel).CommissionRate
	base := s.now().UTC()

	n, group := 1, ""
	if a.starts%comboEvery == 0 {
		n = 2 + (a.starts/comboEvery+1)%2
		group = "CG-" + strings.ToUpper(uuid.NewString()[:8])
	}

	created := make([]*models.TaskRecord, 0, n)
	for i := 0; i < n; i++ {
		p := catalog[(a.starts*7+i*3)%len(catalog)]
		p.Commission = round2(p.Price * rate)
		if group != "" {
			p.Commission = round2(p.Commission * 3)
		}
		r := &models.TaskRecord{
			TaskCode:     "TK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]),
			Status:       models.StatusPending,
			IsCombo:      group != "",
			ComboGroupID: group,
			ComboIndex:   i,
			CreatedAt:    base.Add(time.Duration(i) * time.Millisecond).Format(time.RFC3339Nano),
			StartedAt:    base.Add(time.Duration(i) * time.Millisecond).Format(time.RFC3339Nano),
			Product:      p,
		}
		if group != "" {
			a.balance -= p.Price
		}
		a.records = append(a.records, r)
		created = append(created, r)
	}
	if group != "" {
		assignCanSubmit(a.records, group)
	}

	out := make([]models.TaskRecord, len(created))
	for i, r := range created {
		out[i] = *r
	}
	return out, nil
}

// submitResult mirrors the envelope fields of a submit response.
type submitResult struct {
	success     bool
	mustDeposit bool
	message     string
}

func (s *State) submit(userID, code string) (submitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return submitResult{}, errBadCredentials
	}

	var rec *models.TaskRecord
	for _, r := range a.records {
		if r.TaskCode == code {
			rec = r
			break
		}
	}
	if rec == nil {
		return submitResult{}, errRecordNotFound
	}
	if rec.IsCompleted() {
		return submitResult{message: errAlreadyComplete.Error()}, nil
	}
	if rec.IsCombo && !rec.CanSubmit {
		return submitResult{message: errComboLocked.Error()}, nil
	}
	if a.balance < 0 || (!rec.IsCombo && a.balance < rec.Product.Price) {
		return submitResult{mustDeposit: true, message: "Insufficient balance, please deposit to continue."}, nil
	}

	credit := rec.Product.Commission
	if rec.IsCombo {
		credit += rec.Product.Price
	}
	a.balance += credit
	a.commission += rec.Product.Commission
	a.todayCommission += rec.Product.Commission
	rec.Status = models.StatusCompleted
	rec.CanSubmit = false
	rec.CompletedAt = s.stamp()
	a.transactions = append(a.transactions, models.Transaction{
		ID:        uuid.NewString(),
		Type:      models.TxCommission,
		Amount:    round2(rec.Product.Commission),
		Status:    models.TxCompleted,
		CreatedAt: rec.CompletedAt,
	})
	if rec.ComboGroupID != "" {
		assignCanSubmit(a.records, rec.ComboGroupID)
	}
	a.user.VIPLevel = levelFor(a.balance).Level

	return submitResult{success: true, message: fmt.Sprintf("Order submitted, commission %.2f credited.", rec.Product.Commission)}, nil
}

func (s *State) deposit(userID string, amount float64, method string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return models.Transaction{}, errBadCredentials
	}
	if amount <= 0 {
		return models.Transaction{}, errors.New("amount must be greater than zero")
	}
	if method == "" {
		method = "USDT-TRC20"
	}
	tx := models.Transaction{
		ID:        uuid.NewString(),
		Type:      models.TxDeposit,
		Amount:    round2(amount),
		Status:    models.TxCompleted,
		Method:    method,
		CreatedAt: s.stamp(),
	}
	a.balance += amount
	a.transactions = append(a.transactions, tx)
	a.user.VIPLevel = levelFor(a.balance).Level
	return tx, nil
}

func (s *State) withdraw(userID string, amount float64, address, password string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.account(userID)
	if !ok {
		return models.Transaction{}, errBadCredentials
	}
	switch {
	case amount <= 0:
		return models.Transaction{}, errors.New("amount must be greater than zero")
	case password != a.password:
		return models.Transaction{}, errors.New("incorrect withdrawal password")
	case strings.TrimSpace(address) == "":
		return models.Transaction{}, errors.New("withdrawal address is required")
	case amount > a.balance:
		return models.Transaction{}, errors.New("insufficient balance")
	case amount > levelOf(a.user.VIPLevel).WithdrawLimit:
		return models.Transaction{}, errors.New("amount exceeds the withdrawal limit of your VIP level")
	}
	tx := models.Transaction{
		ID:        uuid.NewString(),
		Type:      models.TxWithdraw,
		Amount:    round2(amount),
		Status:    models.TxPending,
		Address:   address,
		CreatedAt: s.stamp(),
	}
	a.balance -= amount
	a.frozen += amount
	a.transactions = append(a.transactions, tx)
	return tx, nil
}

// assignCanSubmit gives canSubmit to the most recently created pending
// member of group and clears it on every other member.
func assignCanSubmit(records []*models.TaskRecord, group string) {
	var members []*models.TaskRecord
	for _, r := range records {
		if r.ComboGroupID == group {
			r.CanSubmit = false
			if r.IsPending() {
				members = append(members, r)
			}
		}
	}
	if len(members) == 0 {
		return
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Created().Before(members[j].Created())
	})
	members[len(members)-1].CanSubmit = true
}

func levelOf(level int) models.VIPLevel {
	for _, l := range vipLevels {
		if l.Level == level {
			return l
		}
	}
	return vipLevels[0]
}

func levelFor(balance float64) models.VIPLevel {
	current := vipLevels[0]
	for _, l := range vipLevels {
		if balance >= l.MinBalance {
			current = l
		}
	}
	return current
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
