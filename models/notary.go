package models

import "time"

// NotarizedInput marks a state ref as consumed in the notary's registry.
// The primary key on Ref is what makes a second consumption impossible.
type NotarizedInput struct {
	Ref         string `gorm:"primaryKey"`
	ConsumingTx string `gorm:"index"`
	Timestamp   time.Time
}

// NotarizedTransaction is a transaction the notary has finalized. It is
// kept so resubmissions of the same transaction return the same result.
type NotarizedTransaction struct {
	ID         string `gorm:"primaryKey"`
	Timestamp  time.Time
	Serialized []byte
}
