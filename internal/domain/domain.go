package domain

import (
	"github.com/yungbote/draftline-backend/internal/domain/content"
)

type Post = content.Post
type WebsiteProfile = content.WebsiteProfile
type InternalLink = content.InternalLink
type StageLog = content.StageLog
type ExecutionLog = content.ExecutionLog
