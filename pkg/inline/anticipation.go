package inline

// DefaultMaxScanChars bounds how much of the tail regex_anticipation_append
// scans by default.
const DefaultMaxScanChars = 240

// RegexAnticipationAppend implements §4.1's regex_anticipation_append:
// scan the tail of text (bounded by each plugin's MaxScanChars, or
// DefaultMaxScanChars) and, for the first plugin carrying an
// Anticipation whose marker is left open, return the string that would
// speculatively close it.
func (p *Parser) RegexAnticipationAppend(src string) (string, bool) {
	for _, plugin := range p.plugins {
		if plugin.Kind != KindRegex || plugin.Regex == nil || plugin.Regex.Anticipation == nil {
			continue
		}
		if suffix, ok := scanAnticipation(src, plugin.Regex.Anticipation); ok {
			return suffix, true
		}
	}
	return "", false
}

func scanAnticipation(src string, a *Anticipation) (string, bool) {
	maxScan := a.MaxScanChars
	if maxScan <= 0 {
		maxScan = DefaultMaxScanChars
	}
	tail := src
	if len(tail) > maxScan {
		tail = tail[len(tail)-maxScan:]
	}

	startLocs := a.Start.FindAllStringIndex(tail, -1)
	if len(startLocs) == 0 {
		return "", false
	}
	last := startLocs[len(startLocs)-1]

	symmetric := a.End.String() == a.Start.String()
	if symmetric {
		unterminated := len(startLocs)%2 == 1
		if unterminated {
			return a.Append, true
		}
		return "", false
	}

	rest := tail[last[1]:]
	if a.End.MatchString(rest) {
		return "", false
	}
	return a.Append, true
}
