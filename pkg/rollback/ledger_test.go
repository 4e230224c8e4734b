package rollback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func step(label string, calls *[]string, err error) Step {
	return Step{
		Label: label,
		Run: func() error {
			*calls = append(*calls, label)
			return err
		},
		Command: []string{"true", label},
	}
}

func TestUnwindReverseOrder(t *testing.T) {
	var calls []string
	l := NewLedger()
	l.Append(step("first", &calls, nil))
	l.Append(step("second", &calls, nil))
	l.Append(step("third", &calls, nil))

	failed := l.Unwind()

	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"third", "second", "first"}, calls)
}

func TestUnwindBestEffort(t *testing.T) {
	// A failing step must not block the remaining steps.
	var calls []string
	l := NewLedger()
	l.Append(step("first", &calls, nil))
	l.Append(step("second", &calls, errors.New("device busy")))
	l.Append(step("third", &calls, nil))

	failed := l.Unwind()

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"third", "second", "first"}, calls)
}

func TestUnwindEmptyLedger(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, 0, l.Unwind())
}

func TestStepsConsumedExactlyOnce(t *testing.T) {
	var calls []string
	l := NewLedger()
	l.Append(step("only", &calls, nil))

	steps := l.Steps()
	assert.Len(t, steps, 1)

	// A consumed ledger never executes again.
	assert.Equal(t, 0, l.Unwind())
	assert.Empty(t, calls)
}

func TestUnwindTwiceRunsOnce(t *testing.T) {
	var calls []string
	l := NewLedger()
	l.Append(step("only", &calls, nil))

	l.Unwind()
	l.Unwind()

	assert.Equal(t, []string{"only"}, calls)
}
