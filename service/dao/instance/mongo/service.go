package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	idField       = "_id"
	versionField  = "version"
	deadlineField = "_deadline"
)

// Service stores instances as MongoDB documents. Document fields follow the
// instance JSON names; the conditional write matches on _id and version.
type Service struct {
	collection *mongo.Collection
}

var _ dao.Service[string, instance.WorkflowInstance] = (*Service)(nil)

func (s *Service) Save(ctx context.Context, inst *instance.WorkflowInstance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.ID == "" {
		return dao.ErrInvalidID
	}
	current := inst.Version
	inst.Version = current + 1
	doc, err := toDocument(inst)
	if err != nil {
		inst.Version = current
		return err
	}
	if current == 0 {
		if _, err = s.collection.InsertOne(ctx, doc); err != nil {
			inst.Version = current
			if mongo.IsDuplicateKeyError(err) {
				return dao.ErrConflict
			}
			return fmt.Errorf("failed to insert instance %v: %w", inst.ID, err)
		}
		return nil
	}
	result, err := s.collection.ReplaceOne(ctx, bson.M{idField: inst.ID, versionField: current}, doc)
	if err != nil {
		inst.Version = current
		return fmt.Errorf("failed to replace instance %v: %w", inst.ID, err)
	}
	if result.MatchedCount == 1 {
		return nil
	}
	inst.Version = current
	count, err := s.collection.CountDocuments(ctx, bson.M{idField: inst.ID})
	if err != nil {
		return fmt.Errorf("failed to check instance %v: %w", inst.ID, err)
	}
	if count == 0 {
		return dao.ErrNotFound
	}
	return dao.ErrConflict
}

func (s *Service) Load(ctx context.Context, id string) (*instance.WorkflowInstance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	doc := bson.M{}
	if err := s.collection.FindOne(ctx, bson.M{idField: id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load instance %v: %w", id, err)
	}
	return fromDocument(doc)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	result, err := s.collection.DeleteOne(ctx, bson.M{idField: id})
	if err != nil {
		return fmt.Errorf("failed to delete instance %v: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return dao.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.WorkflowInstance, error) {
	filter := criteria.NewFilter(parameters)
	cursor, err := s.collection.Find(ctx, query(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read instances: %w", err)
	}
	result := make([]*instance.WorkflowInstance, 0, len(docs))
	for _, doc := range docs {
		inst, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		if filter.Match(inst) {
			result = append(result, inst)
		}
	}
	return result, nil
}

// EnsureIndexes creates the indexes used by the sweeper and task queries.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: deadlineField, Value: 1}}},
		{Keys: bson.D{{Key: "currentApproverIds", Value: 1}}},
	})
	return err
}

func query(filter *criteria.Filter) bson.M {
	ret := bson.M{}
	if len(filter.Statuses) > 0 {
		ret["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.ApproverID != "" {
		ret["currentApproverIds"] = filter.ApproverID
	}
	if filter.DueBefore != nil {
		ret[deadlineField] = bson.M{"$lte": *filter.DueBefore}
	}
	if filter.DefinitionID != "" {
		ret["workflowDefinitionId"] = filter.DefinitionID
	}
	if filter.DocumentID != "" {
		ret["documentId"] = filter.DocumentID
	}
	if filter.TenantID != "" {
		ret["tenantId"] = filter.TenantID
	}
	return ret
}

// toDocument converts an instance through its JSON form so that stored field
// names match the instance JSON contract.
func toDocument(inst *instance.WorkflowInstance) (bson.M, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal instance %v: %w", inst.ID, err)
	}
	doc := bson.M{}
	if err = bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert instance %v: %w", inst.ID, err)
	}
	doc[idField] = inst.ID
	doc[versionField] = inst.Version
	if inst.TimeoutAt != nil {
		doc[deadlineField] = inst.TimeoutAt.UTC()
	}
	return doc, nil
}

func fromDocument(doc bson.M) (*instance.WorkflowInstance, error) {
	delete(doc, idField)
	delete(doc, deadlineField)
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert instance document: %w", err)
	}
	ret := &instance.WorkflowInstance{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance document: %w", err)
	}
	return ret, nil
}

// New creates a store over collection.
func New(collection *mongo.Collection) *Service {
	return &Service{collection: collection}
}

// Connect opens a client and returns a store over database.collection.
func Connect(ctx context.Context, uri, database, collection string) (*Service, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %v: %w", uri, err)
	}
	return New(client.Database(database).Collection(collection)), client, nil
}
