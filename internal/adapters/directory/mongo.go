package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
)

const mongoCollection = "rooms"

// MongoStore keeps one document per room with a unique index on roomId.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	coll := client.Database(database).Collection(mongoCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure roomId index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Create(ctx context.Context, rec domain.DirectoryRecord) error {
	_, err := s.coll.InsertOne(ctx, toStored(rec))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("room %s: %w", rec.RoomID, core.ErrRoomExists)
	}
	if err != nil {
		return fmt.Errorf("create room %s: %w", rec.RoomID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id domain.RoomID) (domain.DirectoryRecord, error) {
	var rec storedRecord
	err := s.coll.FindOne(ctx, bson.M{"roomId": string(id)}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DirectoryRecord{}, fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	if err != nil {
		return domain.DirectoryRecord{}, fmt.Errorf("get room %s: %w", id, err)
	}
	return fromStored(rec), nil
}

func (s *MongoStore) AddPlayer(ctx context.Context, id domain.RoomID, p domain.DirectoryPlayer) error {
	if err := s.RemovePlayer(ctx, id, p.SessionID); err != nil {
		return err
	}
	return s.updateOne(ctx, id, bson.M{"$push": bson.M{"players": toStoredPlayer(p)}})
}

func (s *MongoStore) RemovePlayer(ctx context.Context, id domain.RoomID, sid domain.SessionID) error {
	return s.updateOne(ctx, id, bson.M{"$pull": bson.M{"players": bson.M{"sessionId": string(sid)}}})
}

func (s *MongoStore) updateOne(ctx context.Context, id domain.RoomID, update bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"roomId": string(id)}, update)
	if err != nil {
		return fmt.Errorf("update room %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id domain.RoomID) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"roomId": string(id)}); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]domain.DirectoryRecord, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var docs []storedRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]domain.DirectoryRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromStored(d))
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
