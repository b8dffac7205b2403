// Package feed は投稿の作成、編集、削除、一覧、取得を行う。
//
// 変更操作は「検証、読み込み、所有者確認、変更、永続化、通知」の順に進む。
// ユーザーの投稿一覧と投稿本体の2つのストアへの書き込みはトランザクションではなく、
// 片方が失敗した場合はもう片方を元に戻す。
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/nao1215/feedhub/internal/model"
	"github.com/nao1215/feedhub/internal/notify"
	"github.com/nao1215/feedhub/internal/storage"
	"github.com/nao1215/feedhub/internal/store"
	"github.com/nao1215/feedhub/internal/validation"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/identity"
)

// PageSize は一覧の1ページあたりの件数。
const PageSize = 3

// maxPage は先頭からの件数がintに収まる最大のページ番号。
const maxPage = math.MaxInt/PageSize + 1

// Service は投稿の操作を行う。
type Service struct {
	users    store.UserStore
	posts    store.PostStore
	images   storage.ImageStore
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを生成する。
func NewService(users store.UserStore, posts store.PostStore, images storage.ImageStore, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		posts:    posts,
		images:   images,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostInput は投稿の作成と編集の入力。
type PostInput struct {
	// Title はタイトル。
	Title string
	// Content は本文。
	Content string
	// ImageURL はアップロード済み画像のパス。編集時は空なら現在の画像を維持する。
	ImageURL string
}

// Page は投稿一覧の1ページ。
type Page struct {
	// Posts は作成日時の降順に並んだ投稿。
	Posts []model.PostView
	// TotalItems は投稿の総数。
	TotalItems int64
}

// Create は認証済みユーザーの投稿を作成する。
func (s *Service) Create(ctx context.Context, id identity.Identity, in PostInput) (*model.PostView, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	if storage.IsPlaceholder(in.ImageURL) {
		return nil, apperr.New(apperr.InvalidInput, "No image attached!")
	}
	if violations := validation.Post(in.Title, in.Content); len(violations) > 0 {
		s.discardImage(ctx, in.ImageURL)
		return nil, apperr.Invalid("Validation failed!", violations)
	}
	if err := s.checkImageFree(ctx, in.ImageURL); err != nil {
		return nil, err
	}

	creator, err := s.users.FindUserByID(ctx, id.UserID)
	if err != nil {
		s.discardImage(ctx, in.ImageURL)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthenticated, "User not found!")
		}
		return nil, fmt.Errorf("作成者の取得に失敗: %w", err)
	}

	post := model.NewPost(strings.TrimSpace(in.Title), strings.TrimSpace(in.Content), in.ImageURL, creator.ID, s.now())
	if err := s.posts.SavePost(ctx, post); err != nil {
		s.discardImage(ctx, in.ImageURL)
		return nil, fmt.Errorf("投稿の保存に失敗: %w", err)
	}

	creator.AddPost(post.ID)
	creator.UpdatedAt = post.CreatedAt
	if err := s.users.SaveUser(ctx, creator); err != nil {
		if derr := s.posts.DeletePostByID(ctx, post.ID); derr != nil {
			s.logger.ErrorContext(ctx, "投稿の取り消しに失敗",
				slog.String("post_id", post.ID),
				slog.Any("error", derr),
			)
		}
		s.discardImage(ctx, in.ImageURL)
		return nil, fmt.Errorf("作成者の投稿一覧の更新に失敗: %w", err)
	}

	view := model.ViewOf(post, model.CreatorOf(creator))
	s.emit(ctx, event.ActionCreate, view)
	s.logger.InfoContext(ctx, "投稿を作成",
		slog.String("post_id", post.ID),
		slog.String("user_id", creator.ID),
	)
	return &view, nil
}

// Edit は投稿のタイトル、本文、画像を更新する。投稿者本人のみ実行できる。
func (s *Service) Edit(ctx context.Context, id identity.Identity, postID string, in PostInput) (*model.PostView, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	if violations := validation.Post(in.Title, in.Content); len(violations) > 0 {
		s.discardImage(ctx, in.ImageURL)
		return nil, apperr.Invalid("Validation failed!", violations)
	}

	post, err := s.loadPost(ctx, postID)
	if err != nil {
		s.discardImage(ctx, in.ImageURL)
		return nil, err
	}
	if !id.Owns(post.Creator) {
		s.discardImage(ctx, in.ImageURL)
		return nil, apperr.New(apperr.Forbidden, "You are not authorized for this action!")
	}

	oldImage := post.ImageURL
	if !storage.IsPlaceholder(in.ImageURL) && in.ImageURL != oldImage {
		if err := s.checkImageFree(ctx, in.ImageURL); err != nil {
			return nil, err
		}
	}
	post.Title = strings.TrimSpace(in.Title)
	post.Content = strings.TrimSpace(in.Content)
	if !storage.IsPlaceholder(in.ImageURL) {
		post.ImageURL = in.ImageURL
	}
	post.UpdatedAt = s.now()

	if err := s.posts.SavePost(ctx, post); err != nil {
		if post.ImageURL != oldImage {
			s.discardImage(ctx, post.ImageURL)
		}
		return nil, fmt.Errorf("投稿の保存に失敗: %w", err)
	}
	if post.ImageURL != oldImage {
		s.discardImage(ctx, oldImage)
	}

	view := model.ViewOf(post, s.creatorOf(ctx, post.Creator))
	s.emit(ctx, event.ActionEdit, view)
	return &view, nil
}

// Delete は投稿を削除する。投稿者本人のみ実行できる。
func (s *Service) Delete(ctx context.Context, id identity.Identity, postID string) error {
	if err := id.Require(); err != nil {
		return err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if !id.Owns(post.Creator) {
		return apperr.New(apperr.Forbidden, "You are not authorized for this action!")
	}

	owner, err := s.users.FindUserByID(ctx, post.Creator)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("投稿者の取得に失敗: %w", err)
	}

	if err := s.posts.DeletePostByID(ctx, post.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Post not found!")
		}
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}

	if owner != nil {
		owner.RemovePost(post.ID)
		owner.UpdatedAt = s.now()
		if err := s.users.SaveUser(ctx, owner); err != nil {
			if serr := s.posts.SavePost(ctx, post); serr != nil {
				s.logger.ErrorContext(ctx, "投稿の復元に失敗",
					slog.String("post_id", post.ID),
					slog.Any("error", serr),
				)
			}
			return fmt.Errorf("投稿者の投稿一覧の更新に失敗: %w", err)
		}
	}

	s.discardImage(ctx, post.ImageURL)

	creator := model.Creator{ID: post.Creator}
	if owner != nil {
		creator = model.CreatorOf(owner)
	}
	s.emit(ctx, event.ActionDelete, model.ViewOf(post, creator))
	s.logger.InfoContext(ctx, "投稿を削除", slog.String("post_id", post.ID))
	return nil
}

// List は指定ページの投稿を返す。1未満のページは1として扱う。
func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	total, err := s.posts.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗: %w", err)
	}
	posts, err := s.posts.FindPostsSorted(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}

	creators := make(map[string]model.Creator, len(posts))
	views := make([]model.PostView, 0, len(posts))
	for _, p := range posts {
		c, ok := creators[p.Creator]
		if !ok {
			c = s.creatorOf(ctx, p.Creator)
			creators[p.Creator] = c
		}
		views = append(views, model.ViewOf(p, c))
	}
	return &Page{Posts: views, TotalItems: total}, nil
}

// Get は投稿を1件返す。
func (s *Service) Get(ctx context.Context, postID string) (*model.PostView, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	view := model.ViewOf(post, s.creatorOf(ctx, post.Creator))
	return &view, nil
}

// loadPost は投稿を取得する。存在しない場合はNotFoundエラーを返す。
func (s *Service) loadPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.posts.FindPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "Post not found!")
		}
		return nil, fmt.Errorf("投稿の取得に失敗: %w", err)
	}
	return post, nil
}

// creatorOf は作成者の概要を返す。ユーザーが見つからない場合はIDのみ設定する。
func (s *Service) creatorOf(ctx context.Context, userID string) model.Creator {
	u, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "作成者の取得に失敗",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
		return model.Creator{ID: userID}
	}
	return model.CreatorOf(u)
}

// checkImageFree は画像がどの投稿からも参照されていないことを確認する。
// 1つの画像を参照できる投稿は1件だけ。
func (s *Service) checkImageFree(ctx context.Context, imagePath string) error {
	referenced, err := s.posts.ImageReferenced(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("画像の参照確認に失敗: %w", err)
	}
	if referenced {
		return apperr.New(apperr.Conflict, "Image is already in use!")
	}
	return nil
}

// discardImage は投稿から外れた画像を削除する。
// 他の投稿が参照している画像は削除しない。
func (s *Service) discardImage(ctx context.Context, imagePath string) {
	if storage.IsPlaceholder(imagePath) {
		return
	}
	referenced, err := s.posts.ImageReferenced(ctx, imagePath)
	if err != nil {
		s.logger.WarnContext(ctx, "画像の参照確認に失敗",
			slog.String("path", imagePath),
			slog.Any("error", err),
		)
		return
	}
	if referenced {
		return
	}
	storage.DeleteBestEffort(ctx, s.images, imagePath, s.logger)
}

// emit は変更イベントを通知する。失敗はログに記録するだけで呼び出し元には返さない。
func (s *Service) emit(ctx context.Context, action event.Action, view model.PostView) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "通知中にパニックが発生",
				slog.String("post_id", view.ID),
				slog.Any("panic", r),
			)
		}
	}()

	ev, err := event.NewPostEvent(view.ID, action, view)
	if err != nil {
		s.logger.ErrorContext(ctx, "イベントの生成に失敗", slog.Any("error", err))
		return
	}
	if err := s.notifier.Emit(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "変更の通知に失敗",
			slog.String("post_id", view.ID),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}
