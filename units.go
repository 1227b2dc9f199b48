package cephtools

// Units of time, expressed in hours. FIT rates are failures per billion
// device-hours, so every period handed to a model is in these units.
const (
	Hour   = 1.0
	Minute = Hour / 60
	Second = Hour / 3600
	Day    = Hour * 24
	Year   = Hour * 24 * 365.25
)

// Decimal sizes and speeds. The "i" names are powers of 1000 here; callers
// pick this family or the binary one explicitly.
const (
	KiB = 1000.0
	MiB = KiB * 1000
	GiB = MiB * 1000
	TiB = GiB * 1000
	PiB = TiB * 1000
)

// Binary capacities (powers of 1024).
const (
	KB = 1024.0
	MB = KB * 1024
	GB = MB * 1024
	TB = GB * 1024
	PB = TB * 1024
)

// Seconds converts a duration in hours to seconds.
func Seconds(hours float64) float64 {
	return hours / Second
}

// TransferTime is the time, in hours, needed to move bytes at speed bytes
// per second. A zero speed never completes and yields zero, so callers must
// only use it when a transfer actually happens.
func TransferTime(bytes, speed float64) float64 {
	if speed <= 0 {
		return 0
	}
	return bytes / speed * Second
}
