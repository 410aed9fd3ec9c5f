package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"repurpose-backend/internal/models"
	"repurpose-backend/internal/repository"
	"repurpose-backend/internal/services"
	"repurpose-backend/internal/websocket"
)

// Pool drains the transcript queue. Each job acquires a Redis lock so a job
// delivered twice is only processed once, and failures are re-queued with
// exponential backoff up to the job's retry budget.
type Pool struct {
	redis       *redis.Client
	pubsub      *redis.Client
	transcripts *services.TranscriptService
	jobRepo     *repository.JobRepo
	sourceRepo  *repository.SourceRepo
	historyRepo *repository.HistoryRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	pubsubClient *redis.Client,
	transcripts *services.TranscriptService,
	jobRepo *repository.JobRepo,
	sourceRepo *repository.SourceRepo,
	historyRepo *repository.HistoryRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		pubsub:      pubsubClient,
		transcripts: transcripts,
		jobRepo:     jobRepo,
		sourceRepo:  sourceRepo,
		historyRepo: historyRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, services.TranscriptQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		p.publishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				SourceID: job.ReferenceID,
				Step:     1,
				StepName: "Fetching transcript",
			},
		})

		var processErr error
		switch job.Type {
		case "transcript-fetch":
			processErr = p.processTranscript(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processTranscript(ctx context.Context, job *models.Job) error {
	var config struct {
		VideoID string `json:"video_id"`
	}
	json.Unmarshal(job.ConfigJSON, &config)
	if config.VideoID == "" {
		return fmt.Errorf("transcript job %s has no video id", job.ID)
	}

	transcript, err := p.transcripts.Fetch(ctx, job.ReferenceID, config.VideoID)
	if err != nil {
		return fmt.Errorf("transcript fetch failed for video %s: %w", config.VideoID, err)
	}

	if transcript == nil {
		// No transcript from any path. The source is still usable for
		// metadata-driven formats, so this is recorded but not a failure.
		log.Printf("No transcript available for video %s", config.VideoID)
		p.appendHistory(ctx, job.ReferenceID, "transcription", "error",
			"No transcript available for this video", nil)
		return nil
	}

	p.appendHistory(ctx, job.ReferenceID, "transcription", "success",
		fmt.Sprintf("Fetched transcript for video %s (%d chars)", config.VideoID, len(transcript.Body.Raw)),
		json.RawMessage(fmt.Sprintf(`{"video_id":%q}`, config.VideoID)))

	log.Printf("Fetched transcript for video %s (%d chars)", config.VideoID, len(transcript.Body.Raw))
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")
	p.sourceRepo.UpdateStatus(ctx, job.ReferenceID, "completed")

	p.publishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: "transcript",
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s - retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), services.TranscriptQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.sourceRepo.UpdateStatus(ctx, job.ReferenceID, "error")
	p.appendHistory(ctx, job.ReferenceID, "transcription", "error",
		"Transcript fetch failed after retries", nil)

	p.publishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) publishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	p.pubsub.Publish(ctx, websocket.UserChannel(userID), string(data))
}

func (p *Pool) appendHistory(ctx context.Context, sourceID uuid.UUID, action, status, details string, metadata json.RawMessage) {
	err := p.historyRepo.Append(ctx, &models.ProcessingHistoryEntry{
		SourceID: sourceID,
		Action:   action,
		Status:   status,
		Details:  details,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("Failed to append processing history for %s: %v", sourceID, err)
	}
}
