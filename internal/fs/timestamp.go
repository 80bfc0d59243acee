package fs

// IsTimestampLike reports whether name embeds a date the way dated backup
// artifacts do: YYYY MM DD with at most one non-digit between the fields,
// year 1970-2050. When the date runs on into more digits (directly or after
// one separator) those digits must start with an hour 00-23.
//
//	backup_20240115_1430.zip  true
//	log-2023.12.25-09.txt     true
//	file_2024010124.txt       false (hour 24)
func IsTimestampLike(name string) bool {
	for i := 0; i+8 <= len(name); i++ {
		if dateAt(name, i) {
			return true
		}
	}
	return false
}

func dateAt(s string, pos int) bool {
	year, ok := digits(s, pos, 4)
	if !ok || year < 1970 || year > 2050 {
		return false
	}
	pos = skipSeparator(s, pos+4)

	month, ok := digits(s, pos, 2)
	if !ok || month < 1 || month > 12 {
		return false
	}
	pos = skipSeparator(s, pos+2)

	day, ok := digits(s, pos, 2)
	if !ok || day < 1 || day > 31 {
		return false
	}
	pos = skipSeparator(s, pos+2)

	if pos >= len(s) || !isDigit(s[pos]) {
		return true
	}
	hour, ok := digits(s, pos, 2)
	return ok && hour <= 23
}

// digits parses n decimal digits at pos.
func digits(s string, pos, n int) (int, bool) {
	if pos+n > len(s) {
		return 0, false
	}
	v := 0
	for i := pos; i < pos+n; i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
		v = v*10 + int(s[i]-'0')
	}
	return v, true
}

func skipSeparator(s string, pos int) int {
	if pos < len(s) && !isDigit(s[pos]) {
		return pos + 1
	}
	return pos
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
