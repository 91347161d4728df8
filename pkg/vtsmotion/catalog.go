package vtsmotion

import (
	"context"
	"strings"
	"sync"
)

// requester is the slice of Transport the catalog needs.
type requester interface {
	Request(ctx context.Context, messageType string, data interface{}) (*Envelope, error)
}

// hostCandidates lists, per logical axis, the host parameter names to
// try in priority order. Matching is case-insensitive: exact first,
// substring second.
var hostCandidates = map[Axis][]string{
	AxisFaceAngleX:    {"FaceAngleX", "AngleX"},
	AxisFaceAngleY:    {"FaceAngleY", "AngleY"},
	AxisFaceAngleZ:    {"FaceAngleZ", "AngleZ"},
	AxisFacePositionX: {"FacePositionX", "PositionX"},
	AxisFacePositionY: {"FacePositionY", "PositionY"},
	AxisEyeLeftX:      {"EyeLeftX", "ParamEyeLeftX"},
	AxisEyeLeftY:      {"EyeLeftY", "ParamEyeLeftY"},
	AxisEyeRightX:     {"EyeRightX", "ParamEyeRightX"},
	AxisEyeRightY:     {"EyeRightY", "ParamEyeRightY"},
	AxisEyeOpenLeft:   {"EyeOpenLeft", "ParamEyeOpenLeft", "ParamEyeLOpen"},
	AxisEyeOpenRight:  {"EyeOpenRight", "ParamEyeOpenRight", "ParamEyeROpen"},
	AxisMouthOpen:     {"MouthOpen", "ParamMouthOpenY", "ParamMouthOpen", "VoiceVolume"},
	AxisMouthSmile:    {"MouthSmile", "ParamMouthForm", "MouthForm"},
	AxisSpeaking:      {"VTSMotionSpeaking"},
	AxisEnergy:        {"VTSMotionEnergy"},
}

// fallbackHostNames are used when a logical axis matches nothing the
// model reports; the host accepts writes to these standard inputs even
// when the model does not list them.
var fallbackHostNames = map[Axis]string{
	AxisFaceAngleX:    "FaceAngleX",
	AxisFaceAngleY:    "FaceAngleY",
	AxisFaceAngleZ:    "FaceAngleZ",
	AxisFacePositionX: "FacePositionX",
	AxisFacePositionY: "FacePositionY",
	AxisMouthOpen:     "MouthOpen",
	AxisMouthSmile:    "MouthSmile",
	AxisSpeaking:      "VTSMotionSpeaking",
	AxisEnergy:        "VTSMotionEnergy",
}

// Catalog resolves logical axes to the parameters the loaded model
// actually exposes. It is rebuilt after every reconnect because a
// different model may be loaded by then.
type Catalog struct {
	transport requester
	logger    *MotionLogger

	mu          sync.RWMutex
	descriptors map[Axis]ParameterDescriptor
	modelName   string
}

func NewCatalog(transport requester, logger *MotionLogger) *Catalog {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Catalog{
		transport:   transport,
		logger:      logger.WithComponent("catalog"),
		descriptors: make(map[Axis]ParameterDescriptor),
	}
}

// Discover queries the host for the loaded model's parameter list and
// rebuilds the logical-to-host mapping.
func (c *Catalog) Discover(ctx context.Context) error {
	resp, err := c.transport.Request(ctx, MsgParamListRequest, nil)
	if err != nil {
		return err
	}

	var data ParamListResponseData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	if !data.ModelLoaded {
		return NewMotionError("no avatar model loaded in host", ErrCodeModelNotLoaded)
	}

	params := make([]HostParameter, 0, len(data.DefaultParameters)+len(data.CustomParameters))
	params = append(params, data.DefaultParameters...)
	params = append(params, data.CustomParameters...)

	descriptors := make(map[Axis]ParameterDescriptor, len(AllAxes))
	matched := 0
	for _, axis := range AllAxes {
		if p, ok := pickParameter(params, hostCandidates[axis]); ok {
			descriptors[axis] = ParameterDescriptor{
				Logical:  axis,
				HostName: p.Name,
				Min:      p.Min,
				Max:      p.Max,
				Default:  p.DefaultValue,
			}
			matched++
			continue
		}
		if host, ok := fallbackHostNames[axis]; ok {
			descriptors[axis] = ParameterDescriptor{
				Logical:  axis,
				HostName: host,
				Min:      defaultRangeFor(axis).min,
				Max:      defaultRangeFor(axis).max,
				Default:  0,
				Fallback: true,
			}
		}
		// Axes with neither a match nor a fallback stay unmapped and
		// their updates are dropped.
	}

	c.mu.Lock()
	c.descriptors = descriptors
	c.modelName = data.ModelName
	c.mu.Unlock()

	c.logger.Infof("Mapped %d/%d axes for model %q (%d host parameters)", matched, len(AllAxes), data.ModelName, len(params))
	return nil
}

type axisRange struct{ min, max float64 }

func defaultRangeFor(axis Axis) axisRange {
	switch axis {
	case AxisFaceAngleX, AxisFaceAngleY, AxisFaceAngleZ:
		return axisRange{-30, 30}
	case AxisFacePositionX, AxisFacePositionY:
		return axisRange{-10, 10}
	case AxisEyeLeftX, AxisEyeLeftY, AxisEyeRightX, AxisEyeRightY, AxisMouthSmile:
		return axisRange{-1, 1}
	default:
		return axisRange{0, 1}
	}
}

func pickParameter(params []HostParameter, candidates []string) (HostParameter, bool) {
	for _, cand := range candidates {
		for _, p := range params {
			if strings.EqualFold(p.Name, cand) {
				return p, true
			}
		}
	}
	for _, cand := range candidates {
		lc := strings.ToLower(cand)
		for _, p := range params {
			if strings.Contains(strings.ToLower(p.Name), lc) {
				return p, true
			}
		}
	}
	return HostParameter{}, false
}

// EnsureParameter creates a custom parameter on the host if the model
// does not already define it. An "already exists" error from the host
// counts as success.
func (c *Catalog) EnsureParameter(ctx context.Context, name string, min, max, def float64) error {
	_, err := c.transport.Request(ctx, MsgParamCreateRequest, ParamCreateRequestData{
		ParameterName:               name,
		Explanation:                 "Created by motion engine",
		Min:                         min,
		Max:                         max,
		DefaultValue:                def,
		DeleteWhenPluginDisconnects: true,
	})
	if err != nil {
		if mErr, ok := err.(*MotionError); ok && isAlreadyExists(mErr) {
			return nil
		}
		return err
	}
	return nil
}

// CurrentModel asks the host which model is loaded right now.
func (c *Catalog) CurrentModel(ctx context.Context) (CurrentModelData, error) {
	var data CurrentModelData
	resp, err := c.transport.Request(ctx, MsgCurrentModel, nil)
	if err != nil {
		return data, err
	}
	err = resp.DecodeData(&data)
	return data, err
}

// LoadModelByName looks the name up in the host's model list and asks
// the host to load it. Loading the already-loaded model is a no-op.
func (c *Catalog) LoadModelByName(ctx context.Context, name string) error {
	resp, err := c.transport.Request(ctx, MsgAvailableModels, nil)
	if err != nil {
		return err
	}
	var list AvailableModelsData
	if err := resp.DecodeData(&list); err != nil {
		return err
	}

	for _, m := range list.AvailableModels {
		if !strings.EqualFold(m.ModelName, name) {
			continue
		}
		if m.ModelLoaded {
			return nil
		}
		_, err := c.transport.Request(ctx, MsgModelLoad, ModelLoadRequestData{ModelID: m.ModelID})
		return err
	}
	return NewMotionError("model not available: "+name, ErrCodeModelNotLoaded)
}

// Resolve returns the descriptor for a logical axis.
func (c *Catalog) Resolve(axis Axis) (ParameterDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descriptors[axis]
	return d, ok
}

// Clamp bounds a value to the axis range. The second return is false
// when the axis has no host mapping.
func (c *Catalog) Clamp(axis Axis, value float64) (float64, bool) {
	d, ok := c.Resolve(axis)
	if !ok {
		return 0, false
	}
	return clamp(value, d.Min, d.Max), true
}

// Count returns the number of mapped axes.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.descriptors)
}

// ModelName returns the name of the model the mapping was built for.
func (c *Catalog) ModelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelName
}
