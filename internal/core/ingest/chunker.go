package ingest

import (
	"strings"
)

// SplitText groups the text's lines into token-bounded chunks, retaining
// roughly overlapTokens from the end of each chunk as the seed of the next.
// Token counts are estimated (~4 chars per token).
func SplitText(text string, targetTokens, overlapTokens int) []string {
	if targetTokens <= 0 {
		targetTokens = 100
	}

	var frags []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			frags = append(frags, s)
		}
	}
	if len(frags) == 0 {
		return nil
	}

	var chunks []string
	var buf []string
	tokSum := 0
	fresh := 0 // fragments added since the last flush

	flush := func() {
		if tokSum == 0 {
			return
		}
		chunks = append(chunks, strings.Join(buf, "\n"))

		// Keep a tail whose token sum is about overlapTokens.
		if overlapTokens > 0 {
			var keep []string
			remain := overlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]string{buf[j]}, keep...)
				remain -= approxTokens(buf[j])
			}
			buf = keep
			tokSum = 0
			for _, s := range buf {
				tokSum += approxTokens(s)
			}
		} else {
			buf = buf[:0]
			tokSum = 0
		}
		fresh = 0
	}

	for _, frag := range frags {
		buf = append(buf, frag)
		tokSum += approxTokens(frag)
		fresh++
		if tokSum >= targetTokens {
			flush()
		}
	}

	// Tail, unless the buffer only holds overlap from the last flush.
	if fresh > 0 {
		flush()
	}

	return chunks
}

// approxTokens is a cheap token estimator (~4 chars per token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
