package sensor

// FrequencyReader abstracts the capacitance-to-digital converter. ReadChannel
// blocks until the chip has a fresh conversion for the channel and returns
// the raw 28-bit frequency count. Lower counts mean higher sensed
// capacitance.
type FrequencyReader interface {
	ReadChannel(channel int) (uint32, error)
	Close() error
}
