package models

import "time"

type VerificationKind string

const (
	KindEmailVerification VerificationKind = "EMAIL_VERIFICATION"
	KindPasswordReset     VerificationKind = "PASSWORD_RESET"
	KindTwoFactor         VerificationKind = "TWO_FACTOR"
	KindPhoneVerification VerificationKind = "PHONE_VERIFICATION"
	KindAccountDeletion   VerificationKind = "ACCOUNT_DELETION"
	KindSensitiveAction   VerificationKind = "SENSITIVE_ACTION"
)

func (k VerificationKind) Valid() bool {
	switch k {
	case KindEmailVerification, KindPasswordReset, KindTwoFactor,
		KindPhoneVerification, KindAccountDeletion, KindSensitiveAction:
		return true
	}
	return false
}

type DeliveryMethod string

const (
	MethodEmail DeliveryMethod = "EMAIL"
	MethodSMS   DeliveryMethod = "SMS"
)

func (m DeliveryMethod) Valid() bool {
	return m == MethodEmail || m == MethodSMS
}

// VerificationCode is one issued one-time code. Only the bcrypt hash of the code is stored.
type VerificationCode struct {
	ID          int64                  `json:"id"`
	UserID      int64                  `json:"user_id"`
	CodeHash    string                 `json:"-"`
	Kind        VerificationKind       `json:"kind"`
	Method      DeliveryMethod         `json:"method"`
	Target      string                 `json:"target"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
	Used        bool                   `json:"used"`
	UsedAt      *time.Time             `json:"used_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// VerificationAttempt records one authorised send and is only used for resend throttling.
type VerificationAttempt struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	Kind          VerificationKind `json:"kind"`
	Method        DeliveryMethod   `json:"method"`
	Target        string           `json:"target"`
	SentAt        time.Time        `json:"sent_at"`
	NextAllowedAt time.Time        `json:"next_allowed_at"`
}
