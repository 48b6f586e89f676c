package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     string             `bson:"user_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d taskDocument) toDomain() domain.Task {
	return domain.Task{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		Status:      domain.TaskStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type TaskRepository struct {
	coll *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) repository.TaskRepository {
	return &TaskRepository{coll: db.Collection(tasksCollection)}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id_idx"),
	})
	if err != nil {
		return fmt.Errorf("create tasks index: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (string, error) {
	now := time.Now().UTC()
	doc := taskDocument{
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert task: unexpected id type %T", res.InsertedID)
	}

	task.ID = oid.Hex()
	task.CreatedAt = now
	task.UpdatedAt = now
	return task.ID, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return nil, domain.NotFound("task not found")
	}

	var doc taskDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("task not found")
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	task := doc.toDomain()
	return &task, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"user_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]domain.Task, len(docs))
	for i := range docs {
		tasks[i] = docs[i].toDomain()
	}
	return tasks, nil
}

func (r *TaskRepository) Update(ctx context.Context, ownerID, id string, update domain.TaskUpdate) (bool, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return false, nil
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ownedFilter matches a task by primary key and owner in one document filter.
func ownedFilter(ownerID, id string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "user_id": ownerID}, true
}
