package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"

	openai "github.com/sashabaranov/go-openai"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrRoutineNotFound = errors.New("routine not found")

// ToolResult is the uniform envelope every dispatched tool returns. It is
// marshaled verbatim into the tool message fed back to the model, including
// for failed tools, so the model can recover instead of the loop aborting.
type ToolResult struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func toolOK(data any) ToolResult { return ToolResult{OK: true, Data: data} }

func toolErr(err error) ToolResult { return ToolResult{OK: false, Error: err.Error()} }

func toolErrf(f string, a ...any) ToolResult {
	return ToolResult{OK: false, Error: fmt.Sprintf(f, a...)}
}

// ToolService maps tool invocations requested by the LLM onto the engines and
// data lookups. Identity fields (uid, sessionId) are always the
// server-authoritative values; anything the model put in its arguments for
// them is ignored, so it cannot impersonate another user or session.
type ToolService interface {
	Definitions() []openai.Tool
	Dispatch(ctx context.Context, userID, sessionID, name string, rawArgs json.RawMessage) ToolResult
}

// toolService implements the ToolService interface.
type toolService struct {
	agg      AggregationService
	risk     RiskService
	rec      RecommendService
	types    repository.ExerciseTypeRepository
	routines repository.RoutineRepository
	chatLogs repository.ChatLogRepository
}

// NewToolService creates a new instance of toolService.
func NewToolService(
	agg AggregationService,
	risk RiskService,
	rec RecommendService,
	types repository.ExerciseTypeRepository,
	routines repository.RoutineRepository,
	chatLogs repository.ChatLogRepository,
) ToolService {
	return &toolService{
		agg:      agg,
		risk:     risk,
		rec:      rec,
		types:    types,
		routines: routines,
		chatLogs: chatLogs,
	}
}

// --- Argument structs (decoded from the model's raw JSON) ---

type exerciseWindowArgs struct {
	ExerciseName string `json:"exerciseName"`
	SinceDays    int    `json:"sinceDays"`
}

type weeksArgs struct {
	Weeks int `json:"weeks"`
}

type focusArgs struct {
	FocusTargets []string `json:"focusTargets"`
}

type logChatArgs struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type recordArgs struct {
	RecordID string `json:"recordId"`
}

type limitArgs struct {
	Limit int `json:"limit"`
}

type categoryArgs struct {
	Category string `json:"category"`
}

type keywordArgs struct {
	Keyword string `json:"keyword"`
}

type routineArgs struct {
	RoutineID string `json:"routineId"`
}

type addRoutineArgs struct {
	Name      string          `json:"name"`
	Memo      string          `json:"memo"`
	Exercises []DraftExercise `json:"exercises"`
}

// Dispatch executes one named tool call. Unknown names are rejected
// explicitly rather than silently no-opped.
func (s *toolService) Dispatch(ctx context.Context, userID, sessionID, name string, rawArgs json.RawMessage) ToolResult {
	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage("{}")
	}
	decode := func(v any) error {
		return json.Unmarshal(rawArgs, v)
	}

	switch name {
	case "get_exercise_timeseries":
		var args exerciseWindowArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		series, err := s.agg.ExerciseTimeseries(ctx, userID, args.ExerciseName, args.SinceDays)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(series)

	case "get_recent_stats":
		var args weeksArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		stats, err := s.agg.RecentStats(ctx, userID, args.Weeks)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(stats)

	case "detect_risk":
		risks, err := s.risk.DetectRisk(ctx, userID)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(risks)

	case "plan_next_week", "recommend_routine":
		var args focusArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		plan, err := s.rec.RecommendRoutine(ctx, userID, args.FocusTargets)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(plan)

	case "log_chat":
		var args logChatArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		if args.Role == "" || args.Content == "" {
			return toolErrf("log_chat requires role and content")
		}
		entry := &domain.ChatLog{
			UserID:    userID, // server-authoritative, never the model's value
			SessionID: sessionID,
			Role:      args.Role,
			Content:   args.Content,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.chatLogs.Append(ctx, entry); err != nil {
			return toolErr(err)
		}
		return toolOK(map[string]string{"logId": entry.ID.Hex()})

	case "get_day_record_summary":
		var args recordArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		summary, err := s.agg.DayRecordSummary(ctx, userID, args.RecordID)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(summary)

	case "get_recent_sessions":
		var args limitArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		sessions, err := s.agg.RecentSessions(ctx, userID, args.Limit)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(sessions)

	case "get_category_breakdown":
		var args weeksArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		breakdown, err := s.agg.CategoryBreakdown(ctx, userID, args.Weeks)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(breakdown)

	case "get_best_set":
		var args exerciseWindowArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		best, err := s.agg.BestSet(ctx, userID, args.ExerciseName, args.SinceDays)
		if err != nil {
			return toolErr(err)
		}
		if best == nil {
			return toolOK(map[string]any{"found": false})
		}
		return toolOK(best)

	case "get_pr_trend":
		var args exerciseWindowArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		trend, err := s.agg.PRTrend(ctx, userID, args.ExerciseName, args.SinceDays)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(trend)

	case "list_exercise_types":
		var args categoryArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		var (
			types []domain.ExerciseType
			err   error
		)
		if args.Category != "" {
			types, err = s.types.GetByCategory(ctx, userID, args.Category)
		} else {
			types, err = s.types.GetByUser(ctx, userID)
		}
		if err != nil {
			return toolErr(err)
		}
		return toolOK(types)

	case "search_exercise_types":
		var args keywordArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		if args.Keyword == "" {
			return toolErrf("search_exercise_types requires keyword")
		}
		types, err := s.types.Search(ctx, userID, args.Keyword)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(types)

	case "list_routines":
		routines, err := s.routines.GetByUser(ctx, userID)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(routines)

	case "get_routine_detail":
		var args routineArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		id, err := primitive.ObjectIDFromHex(args.RoutineID)
		if err != nil {
			return toolErrf("invalid routineId: %s", args.RoutineID)
		}
		routine, err := s.routines.GetByID(ctx, userID, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return toolErr(ErrRoutineNotFound)
			}
			return toolErr(err)
		}
		return toolOK(routine)

	case "add_routine":
		var args addRoutineArgs
		if err := decode(&args); err != nil {
			return toolErr(err)
		}
		if args.Name == "" || len(args.Exercises) == 0 {
			return toolErrf("add_routine requires name and at least one exercise")
		}
		routine := &domain.Routine{
			UserID: userID,
			Name:   args.Name,
			Memo:   args.Memo,
		}
		for i, draft := range args.Exercises {
			exercise := domain.RoutineExercise{
				Name:     draft.Name,
				Category: draft.Category,
				Order:    i,
			}
			for _, set := range draft.Sets {
				exercise.Sets = append(exercise.Sets, domain.RoutineSet{
					SetNumber: set.SetNumber,
					Weight:    set.Weight,
					Reps:      set.Reps,
				})
			}
			routine.Exercises = append(routine.Exercises, exercise)
		}
		id, err := s.routines.Create(ctx, routine)
		if err != nil {
			return toolErr(err)
		}
		return toolOK(map[string]string{"routineId": id.Hex()})

	default:
		return toolErrf("unknown tool: %s", name)
	}
}

// schema builds a minimal JSON-schema object for a function definition.
func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func stringArrayProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

// Definitions exports the full registry as OpenAI function schemas.
func (s *toolService) Definitions() []openai.Tool {
	defs := []openai.FunctionDefinition{
		{
			Name:        "get_exercise_timeseries",
			Description: "Weekly volume, sets, reps, top set, and estimated 1RM for one exercise.",
			Parameters: schema([]string{"exerciseName"}, map[string]any{
				"exerciseName": prop("string", "Exercise name to look up"),
				"sinceDays":    prop("integer", "How many days back to scan (default 90)"),
			}),
		},
		{
			Name:        "get_recent_stats",
			Description: "Session count, averages, totals, and per-category volume over recent weeks.",
			Parameters: schema(nil, map[string]any{
				"weeks": prop("integer", "Trailing window in weeks (default 4)"),
			}),
		},
		{
			Name:        "detect_risk",
			Description: "Heuristic overtraining/rest-deficit/volume-spike warnings from the last 14 days.",
			Parameters:  schema(nil, map[string]any{}),
		},
		{
			Name:        "plan_next_week",
			Description: "Generate a 4-day training plan for next week from recent history.",
			Parameters: schema(nil, map[string]any{
				"focusTargets": stringArrayProp("Categories the user wants to prioritize"),
			}),
		},
		{
			Name:        "log_chat",
			Description: "Append one line to the persisted conversation log.",
			Parameters: schema([]string{"role", "content"}, map[string]any{
				"role":    prop("string", "user, assistant, or tool"),
				"content": prop("string", "Line content"),
			}),
		},
		{
			Name:        "get_day_record_summary",
			Description: "Per-exercise totals for one specific training record.",
			Parameters: schema([]string{"recordId"}, map[string]any{
				"recordId": prop("string", "Record id"),
			}),
		},
		{
			Name:        "get_recent_sessions",
			Description: "Compact summaries of the latest training sessions.",
			Parameters: schema(nil, map[string]any{
				"limit": prop("integer", "Max sessions to return (default 10)"),
			}),
		},
		{
			Name:        "get_category_breakdown",
			Description: "Per-category volume and share of total over recent weeks.",
			Parameters: schema(nil, map[string]any{
				"weeks": prop("integer", "Trailing window in weeks (default 4)"),
			}),
		},
		{
			Name:        "get_best_set",
			Description: "Heaviest single set logged for an exercise.",
			Parameters: schema([]string{"exerciseName"}, map[string]any{
				"exerciseName": prop("string", "Exercise name to look up"),
				"sinceDays":    prop("integer", "How many days back to scan (default 180)"),
			}),
		},
		{
			Name:        "get_pr_trend",
			Description: "Per-week best estimated 1RM trend for an exercise.",
			Parameters: schema([]string{"exerciseName"}, map[string]any{
				"exerciseName": prop("string", "Exercise name to look up"),
				"sinceDays":    prop("integer", "How many days back to scan (default 180)"),
			}),
		},
		{
			Name:        "list_exercise_types",
			Description: "The user's exercise catalog, optionally filtered by category.",
			Parameters: schema(nil, map[string]any{
				"category": prop("string", "Optional category filter"),
			}),
		},
		{
			Name:        "search_exercise_types",
			Description: "Search the user's exercise catalog by name keyword.",
			Parameters: schema([]string{"keyword"}, map[string]any{
				"keyword": prop("string", "Name fragment to search for"),
			}),
		},
		{
			Name:        "list_routines",
			Description: "The user's saved routines, newest first.",
			Parameters:  schema(nil, map[string]any{}),
		},
		{
			Name:        "get_routine_detail",
			Description: "Full detail of one saved routine.",
			Parameters: schema([]string{"routineId"}, map[string]any{
				"routineId": prop("string", "Routine id"),
			}),
		},
		{
			Name:        "recommend_routine",
			Description: "Generate a recommended routine draft with weight suggestions and catalog gaps.",
			Parameters: schema(nil, map[string]any{
				"focusTargets": stringArrayProp("Categories the user wants to prioritize"),
			}),
		},
		{
			Name:        "add_routine",
			Description: "Persist a routine, usually the confirmed draft from recommend_routine.",
			Parameters: schema([]string{"name", "exercises"}, map[string]any{
				"name": prop("string", "Routine name"),
				"memo": prop("string", "Optional memo"),
				"exercises": map[string]any{
					"type":        "array",
					"description": "Ordered exercises with full set lists",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":     prop("string", "Exercise name"),
							"category": prop("string", "Category"),
							"sets": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"setNumber": prop("integer", "1-based set number"),
										"reps":      prop("integer", "Planned reps"),
										"weight":    prop("number", "Planned weight"),
									},
								},
							},
						},
						"required": []string{"name"},
					},
				},
			}),
		},
	}

	tools := make([]openai.Tool, 0, len(defs))
	for i := range defs {
		tools = append(tools, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &defs[i],
		})
	}
	return tools
}
