package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/feedhub/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// usersCollection はユーザーのコレクション名。
	usersCollection = "users"
	// postsCollection は投稿のコレクション名。
	postsCollection = "posts"
)

// MongoStore はMongoDBを使ったStore実装。
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// OpenMongo はMongoDBに接続し、必要なインデックスを作成する。
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDBへの接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDBへの疎通確認に失敗: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		users:  db.Collection(usersCollection),
		posts:  db.Collection(postsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// ensureIndexes はメールアドレスの一意インデックスと一覧用のインデックスを作成する。
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("usersのインデックス作成に失敗: %w", err)
	}

	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "imageUrl", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("postsのインデックス作成に失敗: %w", err)
	}
	return nil
}

// FindUserByEmail はメールアドレスでユーザーを検索する。
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindUserByID はIDでユーザーを検索する。
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

// findUser は条件に一致するユーザーを1件取得する。
func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	if u.Posts == nil {
		u.Posts = []string{}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// SaveUser はユーザーを作成または上書きする。
func (s *MongoStore) SaveUser(ctx context.Context, u *model.User) error {
	doc := *u
	if doc.Posts == nil {
		doc.Posts = []string{}
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}
	return nil
}

// FindPostByID はIDで投稿を検索する。
func (s *MongoStore) FindPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("投稿の取得に失敗: %w", err)
	}
	normalizePost(&p)
	return &p, nil
}

// normalizePost はデコードした時刻をUTCに揃える。
func normalizePost(p *model.Post) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}

// FindPostsSorted は作成日時の降順でskip件飛ばしてlimit件返す。
func (s *MongoStore) FindPostsSorted(ctx context.Context, skip, limit int) ([]*model.Post, error) {
	if skip < 0 {
		skip = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}

	posts := []*model.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("投稿一覧のデコードに失敗: %w", err)
	}
	for _, p := range posts {
		normalizePost(p)
	}
	return posts, nil
}

// CountPosts は投稿の総数を返す。
func (s *MongoStore) CountPosts(ctx context.Context) (int64, error) {
	n, err := s.posts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗: %w", err)
	}
	return n, nil
}

// SavePost は投稿を作成または上書きする。
func (s *MongoStore) SavePost(ctx context.Context, p *model.Post) error {
	if _, err := s.posts.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("投稿の保存に失敗: %w", err)
	}
	return nil
}

// DeletePostByID は投稿を削除する。
func (s *MongoStore) DeletePostByID(ctx context.Context, id string) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ImageReferenced は指定の画像パスを参照している投稿があるかを返す。
func (s *MongoStore) ImageReferenced(ctx context.Context, imagePath string) (bool, error) {
	n, err := s.posts.CountDocuments(ctx, bson.M{"imageUrl": imagePath}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("画像参照の確認に失敗: %w", err)
	}
	return n > 0, nil
}

// Close はMongoDBとの接続を切断する。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
