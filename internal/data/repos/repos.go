package repos

import (
	"gorm.io/gorm"

	contentrepo "github.com/yungbote/draftline-backend/internal/data/repos/content"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type PostRepo = contentrepo.PostRepo
type ProfileRepo = contentrepo.ProfileRepo
type LinkRepo = contentrepo.LinkRepo

// Set bundles every repo behind one constructor for wiring.
type Set struct {
	Posts    PostRepo
	Profiles ProfileRepo
	Links    LinkRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Posts:    contentrepo.NewPostRepo(db, baseLog),
		Profiles: contentrepo.NewProfileRepo(db, baseLog),
		Links:    contentrepo.NewLinkRepo(db, baseLog),
	}
}
