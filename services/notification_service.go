package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
)

// MailNotifier emails the assigned manager when a review becomes ready for
// coaching. Delivery runs in the background and never blocks or fails the
// submission that triggered it.
type MailNotifier struct {
	db *gorm.DB
}

func NewMailNotifier(db *gorm.DB) *MailNotifier {
	if db == nil {
		db = config.DB
	}
	return &MailNotifier{db: db}
}

func (n *MailNotifier) ReviewReadyForCoaching(review *models.CallReview) {
	go func() {
		var manager, se models.User
		if err := n.db.Where("user_id = ? AND delete_at IS NULL", review.ManagerID).First(&manager).Error; err != nil {
			log.Printf("notification: failed to load manager %d: %v", review.ManagerID, err)
			return
		}
		if err := n.db.Where("user_id = ? AND delete_at IS NULL", review.SeID).First(&se).Error; err != nil {
			log.Printf("notification: failed to load SE %d: %v", review.SeID, err)
			return
		}

		subject := fmt.Sprintf("Call review for %s is ready for coaching", review.CustomerName)
		html := fmt.Sprintf(
			"<p>All three scorecards are in for <b>%s</b>'s call with <b>%s</b> on %s.</p>"+
				"<p>The review is ready for a coaching session.</p>",
			se.FullName(), review.CustomerName, review.CallDate.Format("2 Jan 2006"))

		if err := config.SendMail([]string{manager.Email}, subject, html); err != nil {
			log.Printf("notification: failed to send coaching-ready mail for review %s: %v", review.CallReviewID, err)
		}
	}()
}
