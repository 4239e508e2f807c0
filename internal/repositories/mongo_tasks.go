package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"todo-tracker/internal/models"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// mongoTask is the stored document. Ids are kept as canonical uuid strings so
// documents stay readable from the mongo shell.
type mongoTask struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toMongoTask(t *models.Task) mongoTask {
	return mongoTask{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d mongoTask) toModel() (models.Task, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("stored task has invalid id %q: %w", d.ID, err)
	}
	return models.Task{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Status:      models.TaskStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// MongoTaskRepository stores tasks as documents in a single collection.
type MongoTaskRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ TaskStore = (*MongoTaskRepository)(nil)

type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// ConnectMongo dials the server, verifies it with a ping and ensures the
// createdAt index used by List exists.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoTaskRepository, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	repo := &MongoTaskRepository{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}

	_, err = repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create mongo index: %w", err)
	}

	return repo, nil
}

func (r *MongoTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if _, err := r.collection.InsertOne(ctx, toMongoTask(task)); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *MongoTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var doc mongoTask
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	task, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *MongoTaskRepository) List(ctx context.Context, query ListQuery) ([]models.Task, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(query.Offset())).
		SetLimit(int64(query.Limit))

	cursor, err := r.collection.Find(ctx, searchFilter(query.Search), opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoTask
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := doc.toModel()
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}

	total, err := r.Count(ctx, query.Search)
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *MongoTaskRepository) Count(ctx context.Context, search string) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, searchFilter(search))
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, nil
}

func (r *MongoTaskRepository) Update(ctx context.Context, task *models.Task) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": task.ID.String()},
		bson.M{"$set": bson.M{
			"title":       task.Title,
			"description": task.Description,
			"status":      string(task.Status),
			"updatedAt":   task.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *MongoTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *MongoTaskRepository) Health(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// DropDatabase removes the whole database backing the collection.
func (r *MongoTaskRepository) DropDatabase(ctx context.Context) error {
	return r.collection.Database().Drop(ctx)
}

func (r *MongoTaskRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// searchFilter matches the search text literally anywhere in the title,
// ignoring case.
func searchFilter(search string) bson.M {
	if search == "" {
		return bson.M{}
	}
	return bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}}
}
