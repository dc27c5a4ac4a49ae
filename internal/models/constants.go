package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

const (
	// DefaultPricePerHour применяется, когда тариф не задан ни в запросе, ни в конфиге
	DefaultPricePerHour = 70.0

	// MaxCommentLength максимальная длина комментария арендатора
	MaxCommentLength = 500

	// MaxBookingAdvanceDays горизонт бронирования по умолчанию
	MaxBookingAdvanceDays = 365

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 128

	// ScheduleCacheTTL время жизни кэша расписания дня в секундах
	ScheduleCacheTTL = 5 * 60
)

// DateLayout is the canonical storage format for dateOfRent.
const DateLayout = "2006-01-02"
