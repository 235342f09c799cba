package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mujina-project/mujina-core/internal/job"
)

func TestSourceEventVariants(t *testing.T) {
	var update SourceEvent = UpdateJob{Template: job.JobTemplate{ID: "1"}}
	var replace SourceEvent = ReplaceJob{Template: job.JobTemplate{ID: "2"}}

	u, ok := update.(UpdateJob)
	assert.True(t, ok)
	assert.Equal(t, "1", u.Template.ID)

	r, ok := replace.(ReplaceJob)
	assert.True(t, ok)
	assert.Equal(t, "2", r.Template.ID)
}

func TestChannelsRoundTripEventsAndCommands(t *testing.T) {
	events := make(chan SourceEvent, 1)
	commands := make(chan SourceCommand, 1)
	ch := Channels{Events: events, Commands: commands}

	ch.Events <- ReplaceJob{Template: job.JobTemplate{ID: "42"}}
	commands <- SubmitShare{Share: job.Share{JobID: "42"}}

	event := <-events
	replace, ok := event.(ReplaceJob)
	assert.True(t, ok)
	assert.Equal(t, "42", replace.Template.ID)

	cmd := <-ch.Commands
	submit, ok := cmd.(SubmitShare)
	assert.True(t, ok)
	assert.Equal(t, "42", submit.Share.JobID)
}
