package competition

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrizeTemplate is the message shown to a user who wins a prize. It may
// reference {score}, {rank} and {rank_ordinal}; anything else is kept as is.
//
//	"Congratulations, you got {rank_ordinal} place with a score of {score}"
type PrizeTemplate string

// Render substitutes the placeholders of t
func (t PrizeTemplate) Render(score float64, rank int) string {
	if t == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{score}", formatScore(score),
		"{rank_ordinal}", humanize.Ordinal(rank),
		"{rank}", strconv.Itoa(rank),
	)
	return r.Replace(string(t))
}

func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return humanize.Comma(int64(score))
	}
	return humanize.Commaf(score)
}
