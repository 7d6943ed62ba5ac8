package walletapi

import (
	"time"

	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sendRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	SPin       string `json:"sPin" validate:"required,pin4"`
}

type topUpRequest struct {
	Amount string `json:"amount" validate:"required"`
	SPin   string `json:"sPin" validate:"required,pin4"`
}

type groupRecipientRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
}

type groupSendRequest struct {
	Recipients []groupRecipientRequest `json:"recipients" validate:"required,min=1,dive"`
	SPin       string                  `json:"sPin" validate:"required,pin4"`
}

type adminResetRequest struct {
	UserIDs []string `json:"userIds"`
	Reason  string   `json:"reason"`
	SPin    string   `json:"sPin" validate:"required,pin4"`
}

type userPayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	RollNumber string  `json:"rollNo"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	Balance    float64 `json:"balance"`
}

func profileToPayload(profile walletflow.Profile) userPayload {
	return userPayload{
		ID:         profile.Identity.UserID.String(),
		Name:       profile.DisplayName,
		RollNumber: profile.Identity.RollNumber.String(),
		Role:       profile.Role,
		Department: profile.Department,
		Balance:    float64(profile.Balance.Int64()) / 100,
	}
}

type transactionPayload struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	ReceiverID   string    `json:"receiverId"`
	ReceiverName string    `json:"receiverName"`
	Amount       float64   `json:"amount"`
	Type         string    `json:"type"`
	SignedAmount string    `json:"signedAmount"`
	Counterparty string    `json:"counterparty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func recordToPayload(record walletflow.TransactionRecord, viewer walletflow.UserID) transactionPayload {
	return transactionPayload{
		ID:           record.ID,
		SenderID:     record.SenderID,
		SenderName:   record.SenderName,
		ReceiverID:   record.ReceiverID,
		ReceiverName: record.ReceiverName,
		Amount:       float64(record.Amount.Int64()) / 100,
		Type:         string(record.Classify(viewer)),
		SignedAmount: record.SignedRupees(viewer),
		Counterparty: record.Counterparty(viewer),
		CreatedAt:    record.CreatedAt,
	}
}
