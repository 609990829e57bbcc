package germanminer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// AccountType distinguishes private accounts (held by a player) from company
// accounts (held by a named business).
type AccountType string

const (
	AccountTypePrivate AccountType = "Privatkonto"
	AccountTypeCompany AccountType = "Firmenkonto"
)

// Bearer is the holder of a bank account: a Player for private accounts, a
// plain company name otherwise. The set of implementations is closed.
type Bearer interface {
	isBearer()
}

// PlayerBearer holds the bearer of a private account. The nested Player obeys
// the client's lazy flag, so it may itself be unloaded.
type PlayerBearer struct {
	Player *Player
}

func (PlayerBearer) isBearer() {}

// CompanyBearer holds the bearer name of a company account.
type CompanyBearer struct {
	Name string
}

func (CompanyBearer) isBearer() {}

// BankAccount is a remote bank account identified by its account number.
// Balance, AccountType and Bearer are only populated once the account is
// loaded.
type BankAccount struct {
	shared *shared

	AccountNumber string
	Balance       float64
	AccountType   AccountType
	Bearer        Bearer

	loaded bool
}

func newBankAccount(sh *shared, accountNumber string) *BankAccount {
	return &BankAccount{
		shared:        sh,
		AccountNumber: accountNumber,
	}
}

// Loaded reports whether the optional fields have been populated.
func (a *BankAccount) Loaded() bool {
	return a.loaded
}

// Load fetches the account and populates all fields. On any failure the
// account is left untouched and the error propagates.
func (a *BankAccount) Load(ctx context.Context) error {
	params := url.Values{}
	params.Set("number", a.AccountNumber)

	data, err := a.shared.fetch(ctx, endpointBankAccount, params, false)
	if err != nil {
		return err
	}

	var payload struct {
		Account *accountData `json:"account"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Endpoint: endpointBankAccount, Reason: fmt.Sprintf("malformed payload: %v", err)}
	}
	if payload.Account == nil {
		return &ValidationError{Endpoint: endpointBankAccount, Reason: `missing field "account"`}
	}

	return a.populate(ctx, endpointBankAccount, payload.Account)
}

type accountData struct {
	AccountNumber *string  `json:"accountNumber"`
	Balance       *float64 `json:"balance"`
	AccountType   *string  `json:"accountType"`
	Bearer        *string  `json:"bearer"`
}

func (d *accountData) validate(endpoint string) error {
	missing := func(field string) error {
		return &ValidationError{Endpoint: endpoint, Reason: fmt.Sprintf("missing field %q", field)}
	}
	if d.AccountNumber == nil {
		return missing("accountNumber")
	}
	if d.Balance == nil {
		return missing("balance")
	}
	if d.AccountType == nil {
		return missing("accountType")
	}
	if d.Bearer == nil {
		return missing("bearer")
	}
	return nil
}

// populate assigns the validated payload. Fields are only written after every
// check (including a non-lazy nested player load) has passed, so a failed load
// leaves the account unloaded.
func (a *BankAccount) populate(ctx context.Context, endpoint string, data *accountData) error {
	if err := data.validate(endpoint); err != nil {
		return err
	}

	accountType := AccountType(*data.AccountType)

	var bearer Bearer
	switch accountType {
	case AccountTypePrivate:
		player := newPlayer(a.shared, *data.Bearer, "")
		if !a.shared.lazy {
			if err := player.Load(ctx); err != nil {
				return err
			}
		}
		bearer = PlayerBearer{Player: player}
	case AccountTypeCompany:
		bearer = CompanyBearer{Name: *data.Bearer}
	default:
		return &ValidationError{Endpoint: endpoint, Reason: fmt.Sprintf("unknown account type %q", *data.AccountType)}
	}

	a.AccountNumber = *data.AccountNumber
	a.Balance = *data.Balance
	a.AccountType = accountType
	a.Bearer = bearer
	a.loaded = true

	return nil
}

// BankService finds bank accounts. Every call returns fresh, independent
// objects; there is no identity caching.
type BankService struct {
	shared *shared
}

// Account returns the account with the given number. Unless the client is
// lazy, the account is loaded before it is returned.
func (s *BankService) Account(ctx context.Context, accountNumber string) (*BankAccount, error) {
	account := newBankAccount(s.shared, accountNumber)
	if !s.shared.lazy {
		if err := account.Load(ctx); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// ListAll fetches every bank account. The list payload has shipped in several
// shapes (a plain array, an object-map of records, an object with the
// collection under a conventional key); all are tolerated. Every entry is
// validated and a single malformed entry fails the whole call.
func (s *BankService) ListAll(ctx context.Context) ([]*BankAccount, error) {
	data, err := s.shared.fetch(ctx, endpointBankList, nil, false)
	if err != nil {
		return nil, err
	}

	entries, err := accountEntries(data)
	if err != nil {
		return nil, err
	}

	accounts := make([]*BankAccount, 0, len(entries))
	for _, raw := range entries {
		var entry accountData
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, &ValidationError{Endpoint: endpointBankList, Reason: fmt.Sprintf("malformed entry: %v", err)}
		}

		account := newBankAccount(s.shared, "")
		if err := account.populate(ctx, endpointBankList, &entry); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// Keys under which the account collection has been observed to ship when the
// payload is an object instead of a plain array.
var accountListKeys = []string{"accounts", "list", "data"}

func accountEntries(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ValidationError{Endpoint: endpointBankList, Reason: "empty payload"}
	}

	if trimmed[0] == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &ValidationError{Endpoint: endpointBankList, Reason: fmt.Sprintf("malformed array payload: %v", err)}
		}
		return entries, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return nil, &ValidationError{Endpoint: endpointBankList, Reason: "payload is neither an array nor an object"}
	}

	for _, key := range accountListKeys {
		raw, ok := object[key]
		if !ok {
			continue
		}
		if inner := bytes.TrimSpace(raw); len(inner) > 0 && inner[0] == '[' {
			var entries []json.RawMessage
			if err := json.Unmarshal(inner, &entries); err != nil {
				return nil, &ValidationError{Endpoint: endpointBankList, Reason: fmt.Sprintf("malformed %q payload: %v", key, err)}
			}
			return entries, nil
		}
	}

	// Object-map shape: the values are the account records. Sorted by key so
	// the result order is deterministic.
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]json.RawMessage, 0, len(object))
	for _, key := range keys {
		raw := bytes.TrimSpace(object[key])
		if len(raw) == 0 || raw[0] != '{' {
			return nil, &ValidationError{Endpoint: endpointBankList, Reason: fmt.Sprintf("value for %q is not a record", key)}
		}
		entries = append(entries, object[key])
	}

	return entries, nil
}
