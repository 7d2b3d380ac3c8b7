package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/util"
)

// goalsTemplate asks the model to reconcile in-progress goals against the
// conversation.
const goalsTemplate = `TASK: Update the status of the goals below based on the conversation.

Goals:
{{.goalsJSON}}

Recent conversation:
{{.recentMessages}}

For each goal whose progress changed, emit an object with its id, the new status ("IN_PROGRESS", "DONE" or "FAILED") and the objectives with updated completion flags. Leave out goals that did not change.

Respond with a JSON array of objects of the shape:
[{"id": "<goal id>", "status": "DONE", "objectives": [{"id": "<objective id>", "completed": true}]}]

Respond with [] if nothing changed.`

// NewGoalEvaluator returns the evaluator that keeps goal tracking in sync
// with the conversation: completed objectives are checked off and finished or
// abandoned goals change status. Eligible only while the room has goals in
// progress.
func NewGoalEvaluator() core.Evaluator {
	return core.Evaluator{
		Name:        "GOAL",
		Similes:     []string{"UPDATE_GOALS", "GOAL_PROGRESS", "TRACK_GOALS"},
		Description: "Analyze the conversation for progress on the room's goals and update goal and objective status.",
		Examples: []core.EvaluationExample{
			{
				Context: `Goal "Plan the launch" has objectives "pick a date" and "draft the announcement".`,
				Messages: []core.MessageExample{
					{User: "Alice", Content: core.Content{Text: "We settled on March 3rd for the launch."}},
				},
				Outcome: `[{"id": "goal-1", "status": "IN_PROGRESS", "objectives": [{"id": "obj-1", "completed": true}]}]`,
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			goals, err := rt.Goals().GetGoals(ctx, core.GoalQuery{
				RoomID:         message.RoomID,
				OnlyInProgress: true,
				Count:          1,
			})
			if err != nil {
				return false, err
			}
			return len(goals) > 0, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State, _ map[string]any, _ core.HandlerCallback) error {
			goals, err := rt.Goals().GetGoals(ctx, core.GoalQuery{
				RoomID:         message.RoomID,
				OnlyInProgress: true,
				Count:          10,
			})
			if err != nil {
				return fmt.Errorf("load goals: %w", err)
			}
			if len(goals) == 0 {
				return nil
			}

			goalsJSON, err := json.MarshalIndent(goals, "", "  ")
			if err != nil {
				return fmt.Errorf("encode goals: %w", err)
			}
			values := map[string]any{"goalsJSON": string(goalsJSON), "recentMessages": ""}
			if state != nil {
				values["recentMessages"] = state.RecentMessages
			}
			prompt, err := util.RenderTemplate(goalsTemplate, values)
			if err != nil {
				return fmt.Errorf("render goals prompt: %w", err)
			}

			updates, err := rt.Completion().CompleteObjectArray(ctx, prompt)
			if err != nil {
				return fmt.Errorf("evaluate goals: %w", err)
			}

			byID := make(map[string]core.Goal, len(goals))
			for _, g := range goals {
				byID[g.ID] = g
			}

			for _, update := range updates {
				id, _ := update["id"].(string)
				goal, ok := byID[id]
				if !ok {
					rt.Logger().Warn("Goal update names an unknown goal", "goal_id", id)
					continue
				}

				if status, _ := update["status"].(string); status != "" {
					switch s := core.GoalStatus(status); s {
					case core.GoalInProgress, core.GoalDone, core.GoalFailed:
						goal.Status = s
					}
				}
				if objectives, ok := update["objectives"].([]any); ok {
					applyObjectiveUpdates(&goal, objectives)
				}

				if err := rt.Goals().UpdateGoal(ctx, goal); err != nil {
					return fmt.Errorf("update goal %s: %w", goal.ID, err)
				}
				rt.Logger().Debug("Updated goal from conversation", "goal_id", goal.ID, "status", goal.Status)
			}
			return nil
		},
	}
}

// applyObjectiveUpdates flips completion flags on the goal's objectives,
// matching by objective id.
func applyObjectiveUpdates(goal *core.Goal, updates []any) {
	for _, raw := range updates {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := obj["id"].(string)
		completed, hasFlag := obj["completed"].(bool)
		if id == "" || !hasFlag {
			continue
		}
		for i := range goal.Objectives {
			if goal.Objectives[i].ID == id {
				goal.Objectives[i].Completed = completed
			}
		}
	}
}
