package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vibeproof/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ObjectPutter is the part of *s3.Client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// uploadTimeout bounds one PutObject, including uploads made while draining on shutdown.
const uploadTimeout = 30 * time.Second

// ArchiveResult reports one archive attempt.
type ArchiveResult struct {
	CompletionID string
	Key          string
	Err          error
}

// ProofArchiver writes verified completions to object storage off the request path.
type ProofArchiver struct {
	client  ObjectPutter
	bucket  string
	jobs    chan models.MissionCompletion
	results chan ArchiveResult
	metrics *Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewProofArchiver(client ObjectPutter, bucket string, queueSize int, metrics *Metrics, logger *zap.Logger) *ProofArchiver {
	if queueSize < 1 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProofArchiver{
		client:  client,
		bucket:  bucket,
		jobs:    make(chan models.MissionCompletion, queueSize),
		results: make(chan ArchiveResult, queueSize+1),
		metrics: metrics,
		logger:  logger,
	}
}

// ProofKey is proofs/<wallet>/<slug(mission key)>-<completion id>.json.
func ProofKey(c *models.MissionCompletion) string {
	return fmt.Sprintf("proofs/%s/%s-%s.json", c.UserID, slug.Make(c.MissionKey()), c.ID)
}

// Start runs the worker until Close drains the queue. Uploads keep ctx's values
// but ignore its cancellation.
func (a *ProofArchiver) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for c := range a.jobs {
			a.publish(a.archive(ctx, &c))
		}
	}()
}

// Enqueue never blocks; a full or closed queue drops the job and reports false.
func (a *ProofArchiver) Enqueue(c models.MissionCompletion) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	select {
	case a.jobs <- c:
		return true
	default:
		a.metrics.observeArchive("dropped")
		a.logger.Warn("proof archive queue full, dropping job", zap.String("completion_id", c.ID))
		return false
	}
}

// Results streams archive outcomes. It is closed by Close.
func (a *ProofArchiver) Results() <-chan ArchiveResult {
	return a.results
}

// Close stops accepting jobs, drains the queue and closes Results.
func (a *ProofArchiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()

	a.wg.Wait()
	close(a.results)
}

func (a *ProofArchiver) archive(ctx context.Context, c *models.MissionCompletion) ArchiveResult {
	key := ProofKey(c)
	res := ArchiveResult{CompletionID: c.ID, Key: key}

	body, err := json.Marshal(c)
	if err != nil {
		res.Err = fmt.Errorf("encoding completion: %w", err)
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		res.Err = fmt.Errorf("failed to upload to R2: %w", err)
	}
	return res
}

// publish logs and counts the outcome; the results channel never blocks the worker.
func (a *ProofArchiver) publish(res ArchiveResult) {
	if res.Err != nil {
		a.metrics.observeArchive("error")
		a.logger.Error("proof archive failed", zap.String("completion_id", res.CompletionID), zap.String("key", res.Key), zap.Error(res.Err))
	} else {
		a.metrics.observeArchive("ok")
		a.logger.Info("proof archived", zap.String("completion_id", res.CompletionID), zap.String("key", res.Key))
	}
	select {
	case a.results <- res:
	default:
	}
}
