package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/ports"
)

// Generator owns the session status from the moment generation starts.
// One job per session: Start performs a compare-and-swap into "queued" and
// a second Start against the same session is rejected until the job
// reaches a terminal state.
type Generator struct {
	sessions ports.SessionRepository
	store    ports.ObjectStore
	video    ports.VideoGenerator    // nil: simulate the pipeline
	speech   ports.SpeechSynthesizer // nil: skip narration
	tick     time.Duration
}

func NewGenerator(sessions ports.SessionRepository, store ports.ObjectStore, video ports.VideoGenerator, speech ports.SpeechSynthesizer, tick time.Duration) *Generator {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Generator{
		sessions: sessions,
		store:    store,
		video:    video,
		speech:   speech,
		tick:     tick,
	}
}

// Start validates the request, claims the session, and launches the job.
// The job runs on a background context: a client abandoning the page does
// not stop it.
func (g *Generator) Start(ctx context.Context, sessionID, approvedPlan string) error {
	if strings.TrimSpace(approvedPlan) == "" {
		return errors.New("approved plan is empty")
	}
	if err := g.sessions.TryMarkQueued(ctx, sessionID, approvedPlan); err != nil {
		return err
	}

	log.Printf("[Generator] Session %s queued for generation", sessionID)
	go g.run(context.Background(), sessionID, approvedPlan)
	return nil
}

func (g *Generator) run(ctx context.Context, sessionID, plan string) {
	claimed, err := g.sessions.CASStatus(ctx, sessionID, domain.StatusQueued, domain.StatusProcessing)
	if err != nil {
		log.Printf("[Generator] Failed to claim session %s: %v", sessionID, err)
		return
	}
	if !claimed {
		// Lost the race to another job or the session was deleted.
		log.Printf("[Generator] Session %s no longer queued, abandoning job", sessionID)
		return
	}

	if err := g.sessions.UpdateProgress(ctx, sessionID, 10, 300); err != nil {
		log.Printf("[Generator] Failed to record initial progress for %s: %v", sessionID, err)
	}

	var videoURL string
	if g.video != nil {
		videoURL, err = g.render(ctx, sessionID, plan)
	} else {
		videoURL, err = g.simulate(ctx, sessionID)
	}

	if err != nil {
		// No caller to return to: the failure lives in the session record.
		log.Printf("[Generator] Generation failed for session %s: %v", sessionID, err)
		if failErr := g.sessions.FailGeneration(ctx, sessionID, err.Error()); failErr != nil {
			log.Printf("[Generator] CRITICAL: Could not record failure for %s: %v", sessionID, failErr)
		}
		return
	}

	if err := g.sessions.CompleteGeneration(ctx, sessionID, videoURL, time.Now()); err != nil {
		log.Printf("[Generator] CRITICAL: Could not record completion for %s: %v", sessionID, err)
		return
	}
	log.Printf("[Generator] Session %s completed: %s", sessionID, videoURL)
}

// render drives the real pipeline: video generation, optional narration,
// upload to object storage.
func (g *Generator) render(ctx context.Context, sessionID, plan string) (string, error) {
	body, err := g.video.Generate(ctx, plan)
	if err != nil {
		return "", fmt.Errorf("video generation call failed: %w", err)
	}
	defer body.Close()

	if err := g.sessions.UpdateProgress(ctx, sessionID, 60, 120); err != nil {
		log.Printf("[Generator] Progress update failed for %s: %v", sessionID, err)
	}

	url, err := g.store.Put(ctx, domain.GeneratedVideoKey(sessionID), body, "video/mp4")
	if err != nil {
		return "", fmt.Errorf("failed to store generated video: %w", err)
	}

	if g.speech != nil {
		audio, err := g.speech.Synthesize(ctx, narrationScript(plan))
		if err != nil {
			return "", fmt.Errorf("speech synthesis failed: %w", err)
		}
		if _, err := g.store.Put(ctx, domain.NarrationKey(sessionID), bytes.NewReader(audio), "audio/mpeg"); err != nil {
			return "", fmt.Errorf("failed to store narration: %w", err)
		}
	}

	if err := g.sessions.UpdateProgress(ctx, sessionID, 90, 30); err != nil {
		log.Printf("[Generator] Progress update failed for %s: %v", sessionID, err)
	}
	return url, nil
}

// simulate stands in for the generation model when none is configured:
// progress advances on a fixed schedule, then a placeholder URL is
// produced. The schedule and ETA formula match the production pipeline's
// expected five-minute runtime.
func (g *Generator) simulate(ctx context.Context, sessionID string) (string, error) {
	for progress := 20; progress <= 90; progress += 10 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.tick):
		}
		eta := max(0, 300-progress*3)
		if err := g.sessions.UpdateProgress(ctx, sessionID, float64(progress), eta); err != nil {
			log.Printf("[Generator] Progress update failed for %s: %v", sessionID, err)
		}
	}

	// Final assembly step.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * g.tick):
	}
	return fmt.Sprintf("https://example.com/generated_videos/%s.mp4", sessionID), nil
}

// narrationScript trims the plan to a synthesizable length.
func narrationScript(plan string) string {
	const maxChars = 2000
	if len(plan) > maxChars {
		return plan[:maxChars]
	}
	return plan
}
