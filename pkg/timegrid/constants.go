package timegrid

// Поддерживаемые размеры бакетов в миллисекундах
const (
	FineBucketMs   int64 = 60_000    // 1 минута
	CoarseBucketMs int64 = 1_800_000 // 30 минут
)

// Строковые представления для API биржи
const (
	IntervalFine   = "1m"
	IntervalCoarse = "30m"
)

// Количество 30-минутных бакетов в сутках
const CoarseBucketsPerDay = 48

// Формат даты для статусных ключей
const DateFormat = "2006-01-02"
