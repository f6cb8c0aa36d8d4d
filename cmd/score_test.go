package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

func TestFormatScores(t *testing.T) {
	scores := []model.ScoreRow{
		{District: "Mitte", Composite: 78.4, Rank: 1},
		{District: "Ost", Composite: 55.0, Rank: 2},
		{District: "Vaihingen", Composite: 41.7, Rank: 3},
	}

	var buf bytes.Buffer
	formatScores(&buf, scores)

	output := buf.String()
	assert.Contains(t, output, "RANK")
	assert.Contains(t, output, "DISTRICT")
	assert.Contains(t, output, "SCORE")
	assert.Contains(t, output, "Mitte")
	assert.Contains(t, output, "78.4")
	assert.Contains(t, output, "Vaihingen")
	assert.Contains(t, output, "41.7")
}
