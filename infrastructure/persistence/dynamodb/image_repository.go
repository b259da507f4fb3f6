package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"imagio-backend/application/ports"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

// ImageRepository implements the ImageRepository port using DynamoDB.
// All items live in one table: PK scopes by owner, SK by image, and GSI1
// indexes children under their parent for cheap subtree queries.
type ImageRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewImageRepository creates a new DynamoDB-backed image repository
func NewImageRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.ImageRepository {
	return &ImageRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// editItem is the persisted shape of one AI edit
type editItem struct {
	Operation        string            `dynamodbav:"Operation"`
	Provider         string            `dynamodbav:"Provider"`
	Prompt           string            `dynamodbav:"Prompt,omitempty"`
	Parameters       map[string]string `dynamodbav:"Parameters,omitempty"`
	Timestamp        string            `dynamodbav:"Timestamp"`
	ProcessingTimeMS int64             `dynamodbav:"ProcessingTimeMs"`
	Cost             float64           `dynamodbav:"Cost,omitempty"`
}

// imageItem represents the DynamoDB item structure for an image version
type imageItem struct {
	PK               string     `dynamodbav:"PK"`
	SK               string     `dynamodbav:"SK"`
	GSI1PK           string     `dynamodbav:"GSI1PK,omitempty"` // PARENT#<id> for child lookups
	GSI1SK           string     `dynamodbav:"GSI1SK,omitempty"`
	EntityType       string     `dynamodbav:"EntityType"`
	ImageID          string     `dynamodbav:"ImageID"`
	UserID           string     `dynamodbav:"UserID"`
	ParentID         string     `dynamodbav:"ParentID,omitempty"`
	Children         []string   `dynamodbav:"Children,stringset,omitemptyelem,omitempty"`
	IsOriginal       bool       `dynamodbav:"IsOriginal"`
	IsBackgroundOnly bool       `dynamodbav:"IsBackgroundOnly"`
	Version          int        `dynamodbav:"Version"`
	URL              string     `dynamodbav:"URL"`
	ThumbnailURL     string     `dynamodbav:"ThumbnailURL,omitempty"`
	StorageKey       string     `dynamodbav:"StorageKey"`
	ThumbnailKey     string     `dynamodbav:"ThumbnailKey,omitempty"`
	Filename         string     `dynamodbav:"Filename,omitempty"`
	OriginalFilename string     `dynamodbav:"OriginalFilename,omitempty"`
	MimeType         string     `dynamodbav:"MimeType"`
	Size             int64      `dynamodbav:"Size"`
	Width            int        `dynamodbav:"Width"`
	Height           int        `dynamodbav:"Height"`
	AIEdits          []editItem `dynamodbav:"AIEdits,omitempty"`
	Status           string     `dynamodbav:"Status"`
	ProcessingError  string     `dynamodbav:"ProcessingError,omitempty"`
	Tags             []string   `dynamodbav:"Tags,omitempty"`
	Title            string     `dynamodbav:"Title,omitempty"`
	Description      string     `dynamodbav:"Description,omitempty"`
	Category         string     `dynamodbav:"Category"`
	IsPublic         bool       `dynamodbav:"IsPublic"`
	ShareToken       string     `dynamodbav:"ShareToken,omitempty"`
	Views            int        `dynamodbav:"Views"`
	Downloads        int        `dynamodbav:"Downloads"`
	CreatedAt        string     `dynamodbav:"CreatedAt"`
	UpdatedAt        string     `dynamodbav:"UpdatedAt"`
	DeletedAt        string     `dynamodbav:"DeletedAt,omitempty"`
}

func imagePK(userID string) string  { return fmt.Sprintf("USER#%s", userID) }
func imageSK(imageID string) string { return fmt.Sprintf("IMAGE#%s", imageID) }

func toItem(node *entities.ImageNode) imageItem {
	rec := node.Snapshot()

	edits := make([]editItem, 0, len(rec.AIEdits))
	for _, e := range rec.AIEdits {
		edits = append(edits, editItem{
			Operation:        string(e.Operation),
			Provider:         string(e.Provider),
			Prompt:           e.Prompt,
			Parameters:       e.Parameters,
			Timestamp:        e.Timestamp.Format(time.RFC3339Nano),
			ProcessingTimeMS: e.ProcessingTime.Milliseconds(),
			Cost:             e.Cost,
		})
	}

	item := imageItem{
		PK:               imagePK(rec.UserID),
		SK:               imageSK(rec.ID),
		EntityType:       "IMAGE",
		ImageID:          rec.ID,
		UserID:           rec.UserID,
		ParentID:         rec.ParentID,
		Children:         rec.Children,
		IsOriginal:       rec.IsOriginal,
		IsBackgroundOnly: rec.IsBackgroundOnly,
		Version:          rec.Version,
		URL:              rec.URL,
		ThumbnailURL:     rec.ThumbnailURL,
		StorageKey:       rec.StorageKey,
		ThumbnailKey:     rec.ThumbnailKey,
		Filename:         rec.Filename,
		OriginalFilename: rec.OriginalFilename,
		MimeType:         rec.MimeType,
		Size:             rec.Size,
		Width:            rec.Width,
		Height:           rec.Height,
		AIEdits:          edits,
		Status:           rec.Status,
		ProcessingError:  rec.ProcessingError,
		Tags:             rec.Tags,
		Title:            rec.Title,
		Description:      rec.Description,
		Category:         rec.Category,
		IsPublic:         rec.IsPublic,
		ShareToken:       rec.ShareToken,
		Views:            rec.Views,
		Downloads:        rec.Downloads,
		CreatedAt:        rec.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:        rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if rec.ParentID != "" {
		item.GSI1PK = fmt.Sprintf("PARENT#%s", rec.ParentID)
		item.GSI1SK = imageSK(rec.ID)
	}
	if rec.DeletedAt != nil {
		item.DeletedAt = rec.DeletedAt.Format(time.RFC3339Nano)
	}
	return item
}

func fromItem(item imageItem) (*entities.ImageNode, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on image %s: %w", item.ImageID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on image %s: %w", item.ImageID, err)
	}

	var deletedAt *time.Time
	if item.DeletedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, item.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid DeletedAt on image %s: %w", item.ImageID, err)
		}
		deletedAt = &parsed
	}

	edits := make([]entities.AIEdit, 0, len(item.AIEdits))
	for _, e := range item.AIEdits {
		ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			ts = createdAt
		}
		edits = append(edits, entities.AIEdit{
			Operation:      entities.EditOperation(e.Operation),
			Provider:       entities.Provider(e.Provider),
			Prompt:         e.Prompt,
			Parameters:     e.Parameters,
			Timestamp:      ts,
			ProcessingTime: time.Duration(e.ProcessingTimeMS) * time.Millisecond,
			Cost:           e.Cost,
		})
	}

	return entities.ReconstructImageNode(entities.ImageNodeRecord{
		ID:               item.ImageID,
		UserID:           item.UserID,
		ParentID:         item.ParentID,
		Children:         item.Children,
		IsOriginal:       item.IsOriginal,
		IsBackgroundOnly: item.IsBackgroundOnly,
		Version:          item.Version,
		URL:              item.URL,
		ThumbnailURL:     item.ThumbnailURL,
		StorageKey:       item.StorageKey,
		ThumbnailKey:     item.ThumbnailKey,
		Filename:         item.Filename,
		OriginalFilename: item.OriginalFilename,
		MimeType:         item.MimeType,
		Size:             item.Size,
		Width:            item.Width,
		Height:           item.Height,
		AIEdits:          edits,
		Status:           item.Status,
		ProcessingError:  item.ProcessingError,
		Tags:             item.Tags,
		Title:            item.Title,
		Description:      item.Description,
		Category:         item.Category,
		IsPublic:         item.IsPublic,
		ShareToken:       item.ShareToken,
		Views:            item.Views,
		Downloads:        item.Downloads,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
	})
}

// Save persists an image node
func (r *ImageRepository) Save(ctx context.Context, node *entities.ImageNode) error {
	item := toItem(node)

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal image: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("Failed to save image to DynamoDB",
			zap.Error(err),
			zap.String("imageID", item.ImageID),
			zap.String("userID", item.UserID),
		)
		return fmt.Errorf("failed to save image: %w", err)
	}

	r.logger.Debug("Saved image to DynamoDB",
		zap.String("imageID", item.ImageID),
		zap.String("userID", item.UserID),
		zap.Int("version", item.Version),
	)
	return nil
}

// GetByID retrieves an image scoped to its owner. Soft deleted images read
// as not found.
func (r *ImageRepository) GetByID(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	node, err := r.GetByIDIncludingDeleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if node.IsDeleted() {
		return nil, appErrors.ErrImageNotFound
	}
	return node, nil
}

// GetByIDIncludingDeleted retrieves an image regardless of deletion state
func (r *ImageRepository) GetByIDIncludingDeleted(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(userID)},
			"SK": &types.AttributeValueMemberS{Value: imageSK(id.String())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if result.Item == nil {
		return nil, appErrors.ErrImageNotFound
	}

	var item imageItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image: %w", err)
	}
	return fromItem(item)
}

// GetByIDAndIncrementViews retrieves an image and atomically bumps its view
// counter in the same round trip. The condition keeps deleted images out of
// the count.
func (r *ImageRepository) GetByIDAndIncrementViews(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(userID)},
			"SK": &types.AttributeValueMemberS{Value: imageSK(id.String())},
		},
		UpdateExpression:    aws.String("ADD #views :one"),
		ConditionExpression: aws.String("attribute_exists(PK) AND attribute_not_exists(DeletedAt)"),
		ExpressionAttributeNames: map[string]string{
			"#views": "Views",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return nil, appErrors.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to increment views: %w", err)
	}

	var item imageItem
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image: %w", err)
	}
	return fromItem(item)
}

// AddChild atomically appends a child reference to the parent's children set.
// The string-set ADD makes concurrent appends and retries safe.
func (r *ImageRepository) AddChild(ctx context.Context, userID string, parentID, childID valueobjects.ImageID) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(userID)},
			"SK": &types.AttributeValueMemberS{Value: imageSK(parentID.String())},
		},
		UpdateExpression:    aws.String("ADD Children :child"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":child": &types.AttributeValueMemberSS{Value: []string{childID.String()}},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return appErrors.ErrImageNotFound
		}
		return fmt.Errorf("failed to link child: %w", err)
	}

	r.logger.Debug("Linked child image",
		zap.String("parentID", parentID.String()),
		zap.String("childID", childID.String()),
	)
	return nil
}

// ListByUser returns the user's images matching the filter
func (r *ImageRepository) ListByUser(ctx context.Context, userID string, filter ports.ImageFilter) ([]*entities.ImageNode, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(imagePK(userID))).
		And(expression.Key("SK").BeginsWith("IMAGE#"))

	filterEx := expression.Name("DeletedAt").AttributeNotExists()
	if filter.IsPublic != nil {
		filterEx = filterEx.And(expression.Name("IsPublic").Equal(expression.Value(*filter.IsPublic)))
	}
	if filter.Category != "" {
		filterEx = filterEx.And(expression.Name("Category").Equal(expression.Value(filter.Category)))
	}
	if filter.BackgroundOnly != nil {
		filterEx = filterEx.And(expression.Name("IsBackgroundOnly").Equal(expression.Value(*filter.BackgroundOnly)))
	}
	for _, tag := range filter.Tags {
		filterEx = filterEx.And(expression.Name("Tags").Contains(tag))
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyEx).
		WithFilter(filterEx).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build list expression: %w", err)
	}

	// Filtering happens server side after the key read, so paginate through
	// the partition until the requested page is filled.
	var nodes []*entities.ImageNode
	skipped := 0
	var lastKey map[string]types.AttributeValue
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}

		for _, raw := range result.Items {
			var item imageItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Skipping unreadable image item", zap.Error(err))
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			node, err := fromItem(item)
			if err != nil {
				r.logger.Warn("Skipping invalid image item",
					zap.String("imageID", item.ImageID),
					zap.Error(err),
				)
				continue
			}
			nodes = append(nodes, node)
			if filter.Limit > 0 && len(nodes) >= filter.Limit {
				return nodes, nil
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return nodes, nil
}

// ListBackgrounds returns the user's reusable background assets
func (r *ImageRepository) ListBackgrounds(ctx context.Context, userID string, excludeID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	backgroundOnly := true
	nodes, err := r.ListByUser(ctx, userID, ports.ImageFilter{BackgroundOnly: &backgroundOnly})
	if err != nil {
		return nil, err
	}

	filtered := nodes[:0]
	for _, node := range nodes {
		if node.ID().Equals(excludeID) {
			continue
		}
		filtered = append(filtered, node)
	}
	return filtered, nil
}

// GetChildren returns the direct children of a node via GSI1
func (r *ImageRepository) GetChildren(ctx context.Context, userID string, parentID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	keyEx := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("PARENT#%s", parentID.String())))
	filterEx := expression.Name("UserID").Equal(expression.Value(userID))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyEx).
		WithFilter(filterEx).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build children expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("GSI1"),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}

	nodes := make([]*entities.ImageNode, 0, len(result.Items))
	for _, raw := range result.Items {
		var item imageItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Skipping unreadable child item", zap.Error(err))
			continue
		}
		node, err := fromItem(item)
		if err != nil {
			r.logger.Warn("Skipping invalid child item",
				zap.String("imageID", item.ImageID),
				zap.Error(err),
			)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// SoftDelete marks an image deleted while keeping its record in the tree
func (r *ImageRepository) SoftDelete(ctx context.Context, userID string, id valueobjects.ImageID, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(userID)},
			"SK": &types.AttributeValueMemberS{Value: imageSK(id.String())},
		},
		UpdateExpression:    aws.String("SET #status = :deleted, DeletedAt = :at, UpdatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":deleted": &types.AttributeValueMemberS{Value: string(entities.StatusDeleted)},
			":at":      &types.AttributeValueMemberS{Value: at.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return appErrors.ErrImageNotFound
		}
		return fmt.Errorf("failed to soft delete image: %w", err)
	}
	return nil
}

// HardDelete removes an image record permanently
func (r *ImageRepository) HardDelete(ctx context.Context, userID string, id valueobjects.ImageID) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(userID)},
			"SK": &types.AttributeValueMemberS{Value: imageSK(id.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
