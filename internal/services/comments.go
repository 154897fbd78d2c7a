package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/models"
)

const maxCommentLength = 5000

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the distinct lower-cased @tokens in content, in
// order of first appearance.
func ExtractMentions(content string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		token := strings.ToLower(m[1])
		if !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// mentionKeys are the tokens a user answers to: the email local part, the
// name with spaces removed and the first word of the name.
func mentionKeys(u *models.User) []string {
	name := strings.ToLower(strings.TrimSpace(u.Name))
	keys := []string{strings.ToLower(u.Handle()), strings.ReplaceAll(name, " ", "")}
	if fields := strings.Fields(name); len(fields) > 0 {
		keys = append(keys, fields[0])
	}
	return keys
}

func resolveMentions(tokens []string, participants []models.User) []models.User {
	if len(tokens) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		wanted[t] = true
	}
	var users []models.User
	for _, p := range participants {
		for _, key := range mentionKeys(&p) {
			if key != "" && wanted[key] {
				users = append(users, p)
				break
			}
		}
	}
	return users
}

func taskLink(task *models.Task) string {
	project := "inbox"
	if task.ProjectID != nil {
		project = task.ProjectID.String()
	}
	return fmt.Sprintf("/app/project/%s?task=%s", project, task.ID)
}

type CommentInput struct {
	Content string `json:"content" binding:"required"`
}

type CommentService interface {
	ListComments(ctx context.Context, id access.Identity, taskID uuid.UUID) ([]models.Comment, error)
	CreateComment(ctx context.Context, id access.Identity, taskID uuid.UUID, content string) (*models.Comment, error)
}

type CommentServiceImpl struct {
	db     *gorm.DB
	access AccessService
}

func NewCommentService(db *gorm.DB, accessSvc AccessService) *CommentServiceImpl {
	return &CommentServiceImpl{db: db, access: accessSvc}
}

func (s *CommentServiceImpl) ListComments(ctx context.Context, id access.Identity, taskID uuid.UUID) ([]models.Comment, error) {
	if _, _, err := s.access.TaskRelation(ctx, id, taskID); err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Preload("User").Where("task_id = ?", taskID).Order("created_at ASC").Find(&comments).Error
	return comments, err
}

// CreateComment stores the comment, its activity entry and one notification
// per mentioned participant in a single transaction.
func (s *CommentServiceImpl) CreateComment(ctx context.Context, id access.Identity, taskID uuid.UUID, content string) (*models.Comment, error) {
	content, err := requireText("content", content, maxCommentLength)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, _, err := NewAccessService(tx).TaskRelation(ctx, id, taskID)
		if err != nil {
			return err
		}
		author, err := loadUser(ctx, tx, id.UserID)
		if err != nil {
			return err
		}

		participants, err := workspaceParticipants(ctx, tx, task.WorkspaceID)
		if err != nil {
			return err
		}
		mentioned := resolveMentions(ExtractMentions(content), participants)

		comment = models.Comment{TaskID: task.ID, UserID: id.UserID, Content: content, Mentions: []uuid.UUID{}}
		for _, u := range mentioned {
			comment.Mentions = append(comment.Mentions, u.ID)
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}

		entry := taskActivity(task, id.UserID, models.ActivityCommentAdded,
			fmt.Sprintf("commented on %q", task.Title),
			map[string]interface{}{"comment_id": comment.ID.String(), "mentions": len(mentioned)})
		if err := recordActivity(tx, entry); err != nil {
			return err
		}

		for _, u := range mentioned {
			if u.ID == id.UserID {
				continue
			}
			notification := models.Notification{
				UserID:  u.ID,
				Type:    models.NotificationMention,
				Title:   fmt.Sprintf("%s mentioned you", author.Name),
				Message: fmt.Sprintf("on %q: %s", task.Title, content),
				Link:    taskLink(task),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}

		comment.User = author
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}
