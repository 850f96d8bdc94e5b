package controllers

import (
	"github.com/fatoldnerd/sedemoscoring/services"
)

var (
	workflowService *services.WorkflowService
	scoringQueue    *services.ScoringQueue
)

// Init wires the services the controllers depend on. Called once from main
// after config and queue initialization.
func Init(workflow *services.WorkflowService, queue *services.ScoringQueue) {
	workflowService = workflow
	scoringQueue = queue
}
