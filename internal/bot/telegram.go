package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"article-video-gen/internal"
	"article-video-gen/internal/ai"
	"article-video-gen/internal/content"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
	"article-video-gen/internal/scheduler"
)

// Service is what the bot drives.
type Service interface {
	GetConfig() internal.Config
	Snapshot() scheduler.Snapshot
	RunCatalog(ctx context.Context) (scheduler.RunStats, error)
	ResetProcessed(ctx context.Context) int
	GenerateForPost(ctx context.Context, id int64) (model.VideoResult, error)
	ListVideos(ctx context.Context, limit int) ([]model.VideoRecord, error)
	SavePostsChatID(ctx context.Context, chatID int64) error
}

// TelegramBot is the operator surface: status, manual runs and resets. It
// also publishes every catalog video to the posts chat.
type TelegramBot struct {
	tg         *tgbotapi.BotAPI
	svc        Service
	captions   *ai.CaptionGenerator
	log        *logging.Logger
	errorsPath string

	cancelFunc context.CancelFunc
}

func NewTelegramBot(svc Service, captions *ai.CaptionGenerator, log *logging.Logger, errorsPath string) (*TelegramBot, error) {
	tok := svc.GetConfig().TelegramToken
	if tok == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	api, err := tgbotapi.NewBotAPI(tok)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &TelegramBot{
		tg:         api,
		svc:        svc,
		captions:   captions,
		log:        log,
		errorsPath: errorsPath,
	}, nil
}

// SetCancelFunc lets the memory watcher stop the process on a critical leak.
func (b *TelegramBot) SetCancelFunc(cancel context.CancelFunc) { b.cancelFunc = cancel }

func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started as @%s", b.tg.Self.UserName)

	go b.runMemoryWatcher(ctx)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case upd := <-updates:
			if upd.Message != nil && upd.Message.IsCommand() {
				b.handleCommand(ctx, upd.Message)
			}
		}
	}
}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	chatID := msg.Chat.ID

	go b.savePostsChatIDIfNeeded(ctx, chatID)

	switch cmd {
	case "start":
		b.replyText(chatID, "Hi! I turn blog articles into vertical videos. Type /help for the command list.")
	case "help":
		b.cmdHelp(chatID)
	case "status":
		b.cmdStatus(chatID)
	case "run":
		b.cmdRun(ctx, chatID)
	case "reset":
		n := b.svc.ResetProcessed(ctx)
		b.replyText(chatID, fmt.Sprintf("Processed set cleared (%d posts). The next catalog run regenerates them.", n))
	case "video":
		b.cmdVideo(ctx, chatID, msg.CommandArguments())
	case "videos":
		b.cmdVideos(ctx, chatID)
	case "errors":
		b.cmdErrors(chatID)
	case "chatid":
		b.cmdChatID(chatID)
	default:
		b.replyText(chatID, "Unknown command. Type /help.")
	}
}

func (b *TelegramBot) cmdHelp(chatID int64) {
	help := `Commands:
/status - scheduler state and memory usage
/run - start a catalog run now
/reset - clear the processed set
/video <postID> - generate a video for one post
/videos - latest generated videos
/errors - download errors.log
/chatid - show this chat's ID
/help - this help`
	b.replyText(chatID, help)
}

func (b *TelegramBot) cmdStatus(chatID int64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	b.replyText(chatID, formatStatus(b.svc.Snapshot(), ms.HeapAlloc, runtime.NumGoroutine()))
}

func (b *TelegramBot) cmdRun(ctx context.Context, chatID int64) {
	if b.svc.Snapshot().Status == scheduler.StatusRunning {
		b.replyText(chatID, "A catalog run is already in progress.")
		return
	}
	b.replyText(chatID, "Catalog run started.")
	go func() {
		stats, err := b.svc.RunCatalog(ctx)
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			b.replyText(chatID, "A catalog run is already in progress.")
			return
		}
		text := formatRunStats(stats)
		if err != nil {
			text += "\nStopped early: " + err.Error()
		}
		b.replyText(chatID, text)
	}()
}

func (b *TelegramBot) cmdVideo(ctx context.Context, chatID int64, args string) {
	id, err := parsePostID(args)
	if err != nil {
		b.replyText(chatID, "Usage: /video <postID>")
		return
	}
	msgID := b.replyText(chatID, fmt.Sprintf("Generating video for post %d...", id))

	go func() {
		res, err := b.svc.GenerateForPost(ctx, id)
		var text string
		switch {
		case errors.Is(err, scheduler.ErrItemInFlight):
			text = fmt.Sprintf("Post %d is already being generated.", id)
		case errors.Is(err, content.ErrNotFound):
			text = fmt.Sprintf("Post %d not found.", id)
		case errors.Is(err, scheduler.ErrNoImages):
			text = fmt.Sprintf("Post %d has no images.", id)
		case err != nil:
			b.log.Errorf("bot: generate post %d: %v", id, err)
			text = fmt.Sprintf("Could not load post %d: %v", id, err)
		case !res.Completed():
			text = fmt.Sprintf("Generation failed: %s", res.Error)
		default:
			text = fmt.Sprintf("Done: %s\n%ds, %d images", res.URL, res.Meta.Duration, res.Meta.ImageCount)
		}
		if err := b.editMessage(chatID, msgID, text); err != nil {
			b.replyText(chatID, text)
		}
	}()
}

func (b *TelegramBot) cmdVideos(ctx context.Context, chatID int64) {
	recs, err := b.svc.ListVideos(ctx, 10)
	if err != nil {
		b.log.Errorf("bot: list videos: %v", err)
		b.replyText(chatID, "Could not read the videos index.")
		return
	}
	b.replyText(chatID, formatVideos(recs))
}

func (b *TelegramBot) cmdErrors(chatID int64) {
	f, err := os.Open(b.errorsPath)
	if err != nil {
		b.log.Errorf("open errors.log: %v", err)
		b.replyText(chatID, "Could not open errors.log")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		b.log.Errorf("stat errors.log: %v", err)
		b.replyText(chatID, "Could not read errors.log")
		return
	}
	if info.Size() == 0 {
		b.replyText(chatID, "errors.log is empty")
		return
	}

	if lines, err := tailLines(b.errorsPath, 5); err == nil && len(lines) > 0 {
		b.replyText(chatID, "Last errors:\n"+strings.Join(lines, "\n"))
	}

	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: "errors.log", Reader: f})
	msg.Caption = fmt.Sprintf("errors.log (%d bytes)", info.Size())
	if _, err := b.tg.Send(msg); err != nil {
		b.log.Errorf("send errors.log: %v", err)
		b.replyText(chatID, "Could not send the file")
	}
}

func (b *TelegramBot) cmdChatID(chatID int64) {
	b.replyText(chatID, fmt.Sprintf("Your chat ID: %d", chatID))
}

func (b *TelegramBot) savePostsChatIDIfNeeded(ctx context.Context, chatID int64) {
	if b.svc.GetConfig().PostsChatID != 0 {
		return
	}
	if err := b.svc.SavePostsChatID(ctx, chatID); err != nil {
		b.log.Errorf("save posts_chat_id to S3: %v", err)
		return
	}
	b.log.Infof("saved POSTS_CHAT_ID=%d", chatID)
}

// VideoReady publishes a catalog video to the posts chat.
func (b *TelegramBot) VideoReady(ctx context.Context, rec model.VideoRecord) {
	chatID := b.svc.GetConfig().PostsChatID
	if chatID == 0 {
		b.log.Warnf("bot: POSTS_CHATID not set, video for post %d not published", rec.PostID)
		return
	}

	caption, err := b.captions.Caption(ctx, rec.Title, "")
	if err != nil {
		b.log.Warnf("bot: caption for post %d: %v", rec.PostID, err)
	}

	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(rec.URL))
	msg.Caption = caption
	msg.SupportsStreaming = true
	msg.Duration = rec.Meta.Duration
	if _, err := b.tg.Send(msg); err != nil {
		// fall back to a plain link when Telegram cannot fetch the file
		b.log.Warnf("bot: send video for post %d: %v", rec.PostID, err)
		b.replyText(chatID, caption+"\n"+rec.URL)
		return
	}
	b.log.Infof("bot: published video for post %d to chat %d", rec.PostID, chatID)
}

func (b *TelegramBot) replyText(chatID int64, text string) int {
	m := tgbotapi.NewMessage(chatID, text)
	sent, _ := b.tg.Send(m)
	return sent.MessageID
}

func (b *TelegramBot) editMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := b.tg.Send(edit)
	return err
}

func parsePostID(args string) (int64, error) {
	args = strings.TrimPrefix(strings.TrimSpace(args), "#")
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", args)
	}
	return id, nil
}

func formatStatus(snap scheduler.Snapshot, heapBytes uint64, goroutines int) string {
	lines := []string{
		fmt.Sprintf("Scheduler: %s", snap.Status),
		fmt.Sprintf("Processed since reset: %d", snap.Processed),
		fmt.Sprintf("Catalog runs: %d", snap.Runs),
	}
	if snap.Status == scheduler.StatusRunning && !snap.StartedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Running for: %s", time.Since(snap.StartedAt).Round(time.Second)))
	}
	if len(snap.InFlight) > 0 {
		ids := make([]string, len(snap.InFlight))
		for i, id := range snap.InFlight {
			ids[i] = strconv.FormatInt(id, 10)
		}
		lines = append(lines, "Generating: "+strings.Join(ids, ", "))
	}
	if snap.LastRun != nil {
		lines = append(lines, "Last run: "+formatRunStats(*snap.LastRun))
	}
	if !snap.LastReset.IsZero() {
		lines = append(lines, "Last reset: "+snap.LastReset.Format(time.RFC3339))
	}
	lines = append(lines, fmt.Sprintf("Memory: %d MB heap, %d goroutines", heapBytes/(1024*1024), goroutines))
	return strings.Join(lines, "\n")
}

func formatRunStats(st scheduler.RunStats) string {
	return fmt.Sprintf("%d generated, %d failed, %d skipped over %d pages (%s)",
		st.Generated, st.Failed, st.Skipped, st.Pages, st.FinishedAt.Sub(st.StartedAt).Round(time.Second))
}

func formatVideos(recs []model.VideoRecord) string {
	if len(recs) == 0 {
		return "No videos yet."
	}
	var sb strings.Builder
	sb.WriteString("Latest videos:")
	for i, r := range recs {
		fmt.Fprintf(&sb, "\n%d. %s (post %d, %s, %ds)\n%s", i+1, r.Title, r.PostID, r.Trigger, r.Meta.Duration, r.URL)
	}
	return sb.String()
}
