package sqlstore

import (
	"strconv"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Rows use integer keys, so the uuid based ID hooks are inert and lookups go
// through the identifier column instead.
func int64Handlers[T any](newRecord func() T, id func(T) int64) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(T) uuid.UUID {
			return uuid.Nil
		},
		SetID: func(T, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			value := id(record)
			if value <= 0 {
				return ""
			}
			return strconv.FormatInt(value, 10)
		},
	}
}

func noteHandlers() repository.ModelHandlers[*noteRecord] {
	return int64Handlers(
		func() *noteRecord { return &noteRecord{} },
		func(record *noteRecord) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	)
}

func activityHandlers() repository.ModelHandlers[*activityRecord] {
	return int64Handlers(
		func() *activityRecord { return &activityRecord{} },
		func(record *activityRecord) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	)
}

func webhookLogHandlers() repository.ModelHandlers[*webhookLogRecord] {
	return int64Handlers(
		func() *webhookLogRecord { return &webhookLogRecord{} },
		func(record *webhookLogRecord) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	)
}

func apiKeyHandlers() repository.ModelHandlers[*apiKeyRecord] {
	return repository.ModelHandlers[*apiKeyRecord]{
		NewRecord: func() *apiKeyRecord {
			return &apiKeyRecord{}
		},
		GetID: func(*apiKeyRecord) uuid.UUID {
			return uuid.Nil
		},
		SetID: func(*apiKeyRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "public_key"
		},
		GetIdentifierValue: func(record *apiKeyRecord) string {
			if record == nil {
				return ""
			}
			return record.PublicKey
		},
	}
}
