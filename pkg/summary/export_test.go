package summary

// IndexWidth exposes the table index width rule to tests.
func IndexWidth(entries int) int { return indexWidth(entries) }

// HeaderSize is the byte length of magic, version and fixed header.
const HeaderSize = headerSize
