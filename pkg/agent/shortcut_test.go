package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Match(t *testing.T) {
	c := NewClassifier(
		[]string{"what is northwind", "overview", "introduce", "  "},
		[]string{"how many", "count", "top"},
	)

	tests := []struct {
		question string
		want     bool
	}{
		{"What is Northwind?", true},
		{"what   is\tnorthwind", true},
		{"Give me an overview of the database", true},
		{"Please INTRODUCE yourself", true},
		{"Give me an overview and count the orders", false},
		{"overview of the top 5 products", false},
		{"How many orders are there?", false},
		{"Which country has the most customers? overview", true},
		{"overviews please", false},
		{"what is the freight total", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.question))
		})
	}
}

func TestClassifier_Nil(t *testing.T) {
	var c *Classifier
	assert.False(t, c.Match("what is northwind"))
}
