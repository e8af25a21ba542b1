package service

import (
	"context"
	"encoding/json"

	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/errors"
)

/*
RegisterTaskMethods routes the A2A task methods onto manager.
*/
func RegisterTaskMethods(rpc *RPCServer, manager *TaskManager) {
	rpc.Register("message/send", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.MessageSendParams

		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}

		if params.Message == nil {
			return nil, errors.NewInvalidMessageError("params.message is required")
		}

		return manager.SendMessage(ctx, params)
	})

	rpc.Register("tasks/get", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskQueryParams

		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}

		if err := requireField("id", params.ID); err != nil {
			return nil, err
		}

		return manager.GetTask(ctx, params.ID, params.HistoryLength)
	})

	rpc.Register("tasks/cancel", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskIDParams

		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}

		if err := requireField("id", params.ID); err != nil {
			return nil, err
		}

		return manager.CancelTask(ctx, params.ID)
	})

	rpc.Register("tasks/pushNotificationConfig/set", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskPushNotificationConfig

		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}

		if err := requireField("taskId", params.TaskID); err != nil {
			return nil, err
		}

		return manager.SetPushConfig(ctx, params)
	})

	rpc.Register("tasks/pushNotificationConfig/get", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskIDParams

		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}

		if err := requireField("id", params.ID); err != nil {
			return nil, err
		}

		return manager.GetPushConfig(ctx, params.ID)
	})
}
