package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/CesarCrz/cEatssFB/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase Admin SDK. With the emulator
// enabled the SDK is pointed at the local auth and database emulators.
func NewFirebaseApp(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	fbConfig := &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}

	var opts []option.ClientOption
	if cfg.Emulator.Enabled {
		if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.Emulator.AuthHost); err != nil {
			return nil, fmt.Errorf("failed to configure auth emulator: %w", err)
		}
		if err := os.Setenv("FIREBASE_DATABASE_EMULATOR_HOST", cfg.Emulator.DatabaseHost); err != nil {
			return nil, fmt.Errorf("failed to configure database emulator: %w", err)
		}
		fbConfig.DatabaseURL = fmt.Sprintf("http://%s?ns=%s", cfg.Emulator.DatabaseHost, cfg.ProjectID)
		if cfg.CredentialsFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// FirebaseStore is backed by the Firebase Realtime Database. The Admin SDK
// has no listeners, so subscriptions poll their query and fire on change.
type FirebaseStore struct {
	client       *db.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewFirebaseStore(ctx context.Context, app *firebase.App, pollInterval time.Duration, logger *zap.Logger) (*FirebaseStore, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime database: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FirebaseStore{
		client:       client,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

func (f *FirebaseStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := f.client.NewRef(strings.Join(segs, "/")).Get(ctx, &raw); err != nil {
		return false, fmt.Errorf("failed to read %q: %w", path, err)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", path, err)
	}
	return true, nil
}

func (f *FirebaseStore) Set(ctx context.Context, path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	ref := f.client.NewRef(strings.Join(segs, "/"))
	if value == nil {
		err = ref.Delete(ctx)
	} else {
		err = ref.Set(ctx, value)
	}
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) List(ctx context.Context, q Query) (Children, error) {
	segs, err := SplitPath(q.Path)
	if err != nil {
		return nil, err
	}
	ref := f.client.NewRef(strings.Join(segs, "/"))

	var raw map[string]json.RawMessage
	if q.Child == "" {
		err = ref.Get(ctx, &raw)
	} else {
		err = ref.OrderByChild(q.Child).EqualTo(q.Equals).Get(ctx, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", q.Path, err)
	}

	out := make(Children, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out, nil
}

func (f *FirebaseStore) Subscribe(ctx context.Context, q Query, onSnapshot func(Children), onError func(error)) (Subscription, error) {
	if _, err := SplitPath(q.Path); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &pollSubscription{cancel: cancel}
	list := func(ctx context.Context) (Children, error) { return f.List(ctx, q) }
	go poll(subCtx, f.pollInterval, list, onSnapshot, func(err error) {
		f.logger.Warn("Subscription poll failed", zap.String("path", q.Path), zap.Error(err))
		if onError != nil {
			onError(err)
		}
	})

	return sub, nil
}

// poll runs list every interval until ctx ends and calls onSnapshot with
// the first result and with every result that differs from the last one.
func poll(ctx context.Context, interval time.Duration, list func(context.Context) (Children, error), onSnapshot func(Children), onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		children, err := list(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			onError(err)
		default:
			// json.Marshal sorts map keys, so equal snapshots encode identically.
			encoded, err := json.Marshal(children)
			if err == nil && (last == nil || !bytes.Equal(encoded, last)) {
				last = encoded
				onSnapshot(children)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (f *FirebaseStore) Close() error {
	return nil
}

type pollSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (s *pollSubscription) Close() {
	s.once.Do(s.cancel)
}
