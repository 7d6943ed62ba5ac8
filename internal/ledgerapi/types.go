package ledgerapi

import (
	"encoding/json"
	"math"
	"time"

	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

// LoginRequest carries the festival account credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the token plus the initial viewer snapshot.
type LoginResult struct {
	Token   string
	Profile walletflow.Profile
}

// Pagination mirrors the backend paging envelope.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// HistoryQuery filters and pages the transaction history.
type HistoryQuery struct {
	Search string
	Type   string
	From   string
	To     string
	Page   int
	Limit  int
}

// HistoryPage is a decoded history response. Legacy backends answer with a
// bare array; in that case Pagination is synthesized from the record count.
type HistoryPage struct {
	Records    []walletflow.TransactionRecord
	Pagination Pagination
}

type loginPayload struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID         string  `json:"_id"`
	AltID      string  `json:"id"`
	Name       string  `json:"name"`
	RollNumber string  `json:"rollNo"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	Balance    float64 `json:"balance"`
}

func (payload userPayload) toProfile() (walletflow.Profile, error) {
	rawID := payload.ID
	if rawID == "" {
		rawID = payload.AltID
	}
	userID, err := walletflow.NewUserID(rawID)
	if err != nil {
		return walletflow.Profile{}, err
	}
	rollNumber, err := walletflow.NewRollNumber(payload.RollNumber)
	if err != nil {
		return walletflow.Profile{}, err
	}
	return walletflow.Profile{
		Identity: walletflow.Identity{
			UserID:     userID,
			RollNumber: rollNumber,
		},
		DisplayName: payload.Name,
		Role:        payload.Role,
		Department:  payload.Department,
		Balance:     rupeesToPaise(payload.Balance),
	}, nil
}

type transactionPayload struct {
	ID           string    `json:"_id"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	ReceiverID   string    `json:"receiverId"`
	ReceiverName string    `json:"receiverName"`
	Amount       float64   `json:"amount"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (payload transactionPayload) toRecord() walletflow.TransactionRecord {
	return walletflow.TransactionRecord{
		ID:           payload.ID,
		SenderID:     payload.SenderID,
		SenderName:   payload.SenderName,
		ReceiverID:   payload.ReceiverID,
		ReceiverName: payload.ReceiverName,
		Amount:       rupeesToPaise(payload.Amount),
		CreatedAt:    payload.CreatedAt,
	}
}

type historyEnvelope struct {
	Transactions []transactionPayload `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
}

// decodeHistory accepts both history shapes the backend has shipped: the
// legacy bare array and the paginated envelope.
func decodeHistory(raw []byte) (HistoryPage, error) {
	var bare []transactionPayload
	if err := json.Unmarshal(raw, &bare); err == nil {
		page := HistoryPage{
			Records: payloadsToRecords(bare),
			Pagination: Pagination{
				Page:       1,
				Limit:      len(bare),
				Total:      len(bare),
				TotalPages: 1,
			},
		}
		return page, nil
	}
	var envelope historyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{
		Records:    payloadsToRecords(envelope.Transactions),
		Pagination: envelope.Pagination,
	}, nil
}

func payloadsToRecords(payloads []transactionPayload) []walletflow.TransactionRecord {
	records := make([]walletflow.TransactionRecord, 0, len(payloads))
	for _, payload := range payloads {
		records = append(records, payload.toRecord())
	}
	return records
}

// The wire format speaks rupee numbers; internally everything is paise.
func rupeesToPaise(rupees float64) walletflow.AmountPaise {
	return walletflow.AmountPaise(math.Round(rupees * 100))
}

func paiseToRupees(amount walletflow.AmountPaise) float64 {
	return float64(amount.Int64()) / 100
}
