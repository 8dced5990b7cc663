package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register decoders; uploads arrive in any of these formats
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/email"
	"invitedoffer/offerroom/internal/services"
)

// Task types.
const (
	TypeEmailDeliver      = email.TaskTypeDeliver
	TypeImageProcess      = "image:process"
	TypeUnpaidRoomCleanup = "room:cleanup_unpaid"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	roomService services.IRoomService
	s3Client    *s3.Client
	taskClient  services.IAsynqClient
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	roomService services.IRoomService,
	s3Client *s3.Client,
	taskClient services.IAsynqClient,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		roomService: roomService,
		s3Client:    s3Client,
		taskClient:  taskClient,
	}
}

// SetupServer configures an Asynq server and the handler mux for the
// requested worker role. The caller runs the returned server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDeliver, processor.HandleEmailDeliverTask)
		mux.HandleFunc(TypeUnpaidRoomCleanup, processor.HandleUnpaidRoomCleanupTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	return srv, mux
}

// --- Task Handlers ---

// HandleEmailDeliverTask renders and sends one notification email.
func (p *TaskProcessor) HandleEmailDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload email.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Sending email task: To=%s, Kind=%s", payload.To, payload.Kind)

	subject := email.Subject(payload.Kind, payload.Data)
	body, err := email.Render(payload.Kind, payload.Data)
	if err != nil {
		// Unknown kind or broken data will not fix itself on retry.
		return fmt.Errorf("failed to render email: %v: %w", err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "notifications@invitedoffer.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s <%s>\r\n", p.cfg.AppName, fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, []byte(sb.String())); err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Kind=%s", payload.To, payload.Kind)
	return nil
}

// ImageTaskPayload identifies an uploaded image awaiting normalization.
type ImageTaskPayload struct {
	S3Key  string `json:"s3_key"`
	RoomID string `json:"room_id"`
}

// HandleImageProcessTask normalizes an uploaded room image: size cap,
// format validation, downscale to the configured max dimension, then
// attaches the key to the room.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, RoomID=%s", payload.S3Key, payload.RoomID)

	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data for key %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageData := imgData
	contentType := "image/" + format
	if getObjectOutput.ContentType != nil {
		contentType = *getObjectOutput.ContentType
	}

	if needsResize {
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image %s: %w", payload.S3Key, err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}

		_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.AwsS3Bucket),
			Key:         aws.String(payload.S3Key),
			Body:        bytes.NewReader(processedImageData),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload processed image %s: %w", payload.S3Key, err)
		}
	}

	if err := p.roomService.AddImageToRoom(ctx, payload.RoomID, payload.S3Key); err != nil {
		if services.ErrKind(err) == services.KindNotFound {
			log.Printf("Room %s gone before image %s could be attached.", payload.RoomID, payload.S3Key)
			return fmt.Errorf("room not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to attach image %s to room %s: %w", payload.S3Key, payload.RoomID, err)
	}

	log.Printf("Image task processed successfully: Key=%s, RoomID=%s", payload.S3Key, payload.RoomID)
	return nil
}

// HandleUnpaidRoomCleanupTask garbage-collects rooms that never completed
// payment and re-enqueues itself for the next sweep.
func (p *TaskProcessor) HandleUnpaidRoomCleanupTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting unpaid room cleanup task...")

	deleted, err := p.roomService.CleanupUnpaidRooms(ctx, p.cfg.RoomUnpaidMaxAge)
	if err != nil {
		log.Printf("Unpaid room cleanup failed: %v", err)
		return err
	}
	log.Printf("Unpaid room cleanup finished. Deleted %d rooms.", deleted)

	taskInfo, err := p.taskClient.EnqueueContext(ctx, t, asynq.ProcessIn(p.cfg.RoomCleanupInterval), asynq.Queue("low"))
	if err != nil {
		log.Printf("ERROR failed to re-enqueue unpaid room cleanup task: %v", err)
		return err
	}
	log.Printf("Re-enqueued unpaid room cleanup task %s to run in %v.", taskInfo.ID, p.cfg.RoomCleanupInterval)
	return nil
}
