package game

import (
	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type ReceivedWord struct {
	From    string `json:"from"`
	Text    string `json:"text"`
	Guessed bool   `json:"guessed"`
}

type PlayerReport struct {
	UserID  int64          `json:"id"`
	Name    string         `json:"name"`
	Guessed int            `json:"guessed"`
	Words   []ReceivedWord `json:"words"`
}

type Summary struct {
	Words       int     `json:"words"`
	Guessed     int     `json:"guessed"`
	MeanGuessed float64 `json:"meanGuessed"`
	MaxGuessed  float64 `json:"maxGuessed"`
}

type Report struct {
	Code    string         `json:"code"`
	Players []PlayerReport `json:"players"`
	Summary Summary        `json:"summary"`
}

func buildReport(code string, players []schema.Player, words []database.WordView) Report {
	byRecipient := lo.GroupBy(words, func(w database.WordView) int64 { return w.ToUserID })

	report := Report{Code: code, Players: make([]PlayerReport, 0, len(players))}
	counts := make([]float64, 0, len(players))
	for _, p := range players {
		received := lo.Map(byRecipient[p.UserID], func(w database.WordView, _ int) ReceivedWord {
			return ReceivedWord{From: w.FromName, Text: w.Text, Guessed: w.Guessed}
		})
		report.Players = append(report.Players, PlayerReport{
			UserID:  p.UserID,
			Name:    p.UserName,
			Guessed: p.GuessedCount,
			Words:   received,
		})
		counts = append(counts, float64(p.GuessedCount))
	}

	report.Summary.Words = len(words)
	report.Summary.Guessed = lo.CountBy(words, func(w database.WordView) bool { return w.Guessed })
	if len(counts) > 0 {
		report.Summary.MeanGuessed = stat.Mean(counts, nil)
		report.Summary.MaxGuessed = floats.Max(counts)
	}
	return report
}
