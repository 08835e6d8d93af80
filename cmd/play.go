package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/app"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/hints"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/navigator"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screens/player"
)

const defaultPlayUser = "local"

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a course in the terminal",
	Long: `Play a course in the terminal, resuming from the learner's stored progress.

Without --server the local database is used. With --server and --token the
course, progress and XP live on a running "learnpath serve".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course")
		userID, _ := cmd.Flags().GetString("user")
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		logFile, _ := cmd.Flags().GetString("log-file")

		if courseID == "" {
			return errors.New("--course is required")
		}

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		// Console logs would draw over the player.
		e.logger = zap.NewNop()
		if logFile != "" {
			if e.logger, err = logging.NewFile(e.cfg.Log.Level, logFile); err != nil {
				return err
			}
		}
		defer func() { _ = e.logger.Sync() }()

		if server != "" {
			if token == "" {
				return errors.New("--token is required with --server")
			}
			return playRemote(cmd.Context(), e, strings.TrimRight(server, "/"), token, courseID)
		}
		return playLocal(cmd, e, userID, courseID)
	},
}

func init() {
	playCmd.Flags().String("course", "", "Course ID to play")
	playCmd.Flags().String("user", defaultPlayUser, "Learner ID for local progress")
	playCmd.Flags().String("server", "", "Base URL of a learnpath server (remote mode)")
	playCmd.Flags().String("token", "", "Learner token for remote mode (see 'learnpath token')")
	playCmd.Flags().String("log-file", "", "Write logs to this file")
}

func playLocal(cmd *cobra.Command, e *env, userID, courseID string) error {
	ctx := cmd.Context()

	st, err := openStore(cmd, e.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := buildServices(ctx, e, st, nil)
	if err != nil {
		return err
	}
	defer svc.close()

	course, err := svc.courses.Course(ctx, content.ID(courseID))
	if err != nil {
		return fmt.Errorf("load course %s: %w", courseID, err)
	}
	rec, err := svc.progress.Latest(ctx, userID, course.ID)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	feed := player.NewFeed()
	sink := progress.NewSink(userID, string(course.ID), svc.progress,
		progress.WithDebounce(e.cfg.Progress.Debounce),
		progress.WithLogger(e.logger))
	completer := &localCompleter{
		engine:     svc.gamification,
		dispatcher: svc.dispatcher,
		title:      course.Title,
		logger:     e.logger,
	}

	return runPlayer(e, course, rec, navigator.Deps{
		Course:    course,
		Sink:      sink,
		Completer: feed.Completer(completer),
		Listener:  feed.Listen,
		Logger:    e.logger,
	}, player.Deps{
		Feed:     feed,
		Hints:    svc.hints,
		Standing: svc.gamification,
		UserID:   userID,
	})
}

// playRemote plays against a server: the course is fetched, progress is
// posted and completion is credited server-side.
func playRemote(ctx context.Context, e *env, server, token, courseID string) error {
	timeout := e.cfg.Server.ReadTimeout

	course, err := content.NewHTTPProvider(server+"/api", timeout).WithToken(token).
		Course(ctx, content.ID(courseID))
	if err != nil {
		return fmt.Errorf("load course %s: %w", courseID, err)
	}
	writer := progress.NewRemoteWriter(server, token, timeout)
	rec, err := writer.Latest(ctx, string(course.ID))
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	feed := player.NewFeed()
	// The user id is the token's subject server-side; the sink only needs
	// a label.
	sink := progress.NewSink("remote", string(course.ID), writer,
		progress.WithDebounce(e.cfg.Progress.Debounce),
		progress.WithLogger(e.logger))

	return runPlayer(e, course, rec, navigator.Deps{
		Course:    course,
		Sink:      sink,
		Completer: feed.Completer(nil),
		Listener:  feed.Listen,
		Logger:    e.logger,
	}, player.Deps{
		Feed:     feed,
		Hints:    hints.NewService(nil, hints.DefaultConfig(), e.logger),
		Standing: gamification.NewRemote(server, token, timeout),
		UserID:   "remote",
	})
}

func runPlayer(e *env, course *content.Course, rec *progress.Record, nd navigator.Deps, pd player.Deps) error {
	ctl, err := navigator.New(navigator.Config{
		UserID:         pd.UserID,
		Settle:         e.cfg.Navigation.Settle,
		TimerTick:      e.cfg.Navigation.TimerTick,
		AnswerDebounce: e.cfg.Progress.AnswerDebounce,
	}, nd)
	if err != nil {
		nd.Sink.Close()
		return err
	}
	if err := ctl.Resume(navigator.ResumeFrom(course, rec)); err != nil {
		e.logger.Warn("stored position rejected, starting over", zap.Error(err))
	}

	pd.Controller = ctl
	return app.Run(player.New(pd))
}

// localCompleter credits a course finished in the terminal and notifies
// only when this completion was the crediting one.
type localCompleter struct {
	engine     *gamification.Engine
	dispatcher *notify.Dispatcher
	title      string
	logger     *zap.Logger
}

func (c *localCompleter) CompleteCourse(ctx context.Context, userID, courseID string, score int) error {
	credited, err := c.engine.CompleteCourseOnce(ctx, userID, courseID, score)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}
	c.logger.Info("course credited", zap.String("user", userID), zap.String("course", courseID))
	c.dispatcher.Dispatch(notify.Completion{
		UserID:      userID,
		CourseID:    courseID,
		CourseTitle: c.title,
		Score:       score,
		CompletedAt: time.Now(),
	})
	return nil
}
