package vtsmotion

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	response interface{}
	respType string
	err      error
	lastType string
	lastData interface{}
}

func (f *fakeRequester) Request(ctx context.Context, messageType string, data interface{}) (*Envelope, error) {
	f.lastType = messageType
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := json.Marshal(f.response)
	return &Envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   "resp",
		MessageType: f.respType,
		Data:        raw,
	}, nil
}

func paramList(names ...string) ParamListResponseData {
	params := make([]HostParameter, 0, len(names))
	for _, name := range names {
		params = append(params, HostParameter{Name: name, Min: -30, Max: 30})
	}
	return ParamListResponseData{
		ModelLoaded:       true,
		ModelName:         "Model",
		DefaultParameters: params,
	}
}

func TestDiscoverExactMatch(t *testing.T) {
	req := &fakeRequester{
		respType: MsgParamListResponse,
		response: paramList("FaceAngleX", "FaceAngleY", "FaceAngleZ", "MouthOpen"),
	}
	c := NewCatalog(req, nil)

	require.NoError(t, c.Discover(context.Background()))

	d, ok := c.Resolve(AxisFaceAngleX)
	require.True(t, ok)
	assert.Equal(t, "FaceAngleX", d.HostName)
	assert.False(t, d.Fallback)
	assert.Equal(t, -30.0, d.Min)
	assert.Equal(t, 30.0, d.Max)
}

func TestDiscoverCaseInsensitiveAndSubstring(t *testing.T) {
	req := &fakeRequester{
		respType: MsgParamListResponse,
		response: paramList("faceanglex", "MyModelParamMouthOpenY2"),
	}
	c := NewCatalog(req, nil)

	require.NoError(t, c.Discover(context.Background()))

	d, ok := c.Resolve(AxisFaceAngleX)
	require.True(t, ok)
	assert.Equal(t, "faceanglex", d.HostName)

	d, ok = c.Resolve(AxisMouthOpen)
	require.True(t, ok)
	assert.Equal(t, "MyModelParamMouthOpenY2", d.HostName)
}

func TestDiscoverFallbackForUnmatchedAxes(t *testing.T) {
	req := &fakeRequester{
		respType: MsgParamListResponse,
		response: paramList("SomethingUnrelated"),
	}
	c := NewCatalog(req, nil)

	require.NoError(t, c.Discover(context.Background()))

	d, ok := c.Resolve(AxisMouthOpen)
	require.True(t, ok)
	assert.True(t, d.Fallback)
	assert.Equal(t, "MouthOpen", d.HostName)

	// Eye axes have no pre-agreed fallback and stay unmapped.
	_, ok = c.Resolve(AxisEyeLeftX)
	assert.False(t, ok)
}

func TestDiscoverNoModelLoaded(t *testing.T) {
	req := &fakeRequester{
		respType: MsgParamListResponse,
		response: ParamListResponseData{ModelLoaded: false},
	}
	c := NewCatalog(req, nil)

	err := c.Discover(context.Background())
	require.Error(t, err)
	mErr, ok := err.(*MotionError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeModelNotLoaded, mErr.Code)
	assert.Equal(t, 0, c.Count())
}

func TestClampThroughCatalog(t *testing.T) {
	req := &fakeRequester{
		respType: MsgParamListResponse,
		response: paramList("FaceAngleX"),
	}
	c := NewCatalog(req, nil)
	require.NoError(t, c.Discover(context.Background()))

	v, ok := c.Clamp(AxisFaceAngleX, 500)
	require.True(t, ok)
	assert.Equal(t, 30.0, v)

	v, ok = c.Clamp(AxisFaceAngleX, -500)
	require.True(t, ok)
	assert.Equal(t, -30.0, v)

	_, ok = c.Clamp(AxisEyeLeftX, 0.5)
	assert.False(t, ok)
}

func TestEnsureParameterAlreadyExistsIsSuccess(t *testing.T) {
	req := &fakeRequester{err: NewHostAPIError(352, "Custom parameter already exists")}
	c := NewCatalog(req, nil)

	err := c.EnsureParameter(context.Background(), "MouthOpen", 0, 1, 0)
	assert.NoError(t, err)
	assert.Equal(t, MsgParamCreateRequest, req.lastType)
}

func TestEnsureParameterOtherErrorsPropagate(t *testing.T) {
	req := &fakeRequester{err: NewHostAPIError(50, "model not available")}
	c := NewCatalog(req, nil)

	err := c.EnsureParameter(context.Background(), "MouthOpen", 0, 1, 0)
	assert.Error(t, err)
}

// routedRequester answers by message type, for multi-request flows.
type routedRequester struct {
	responses map[string]interface{}
	calls     []string
	lastData  interface{}
}

func (f *routedRequester) Request(ctx context.Context, messageType string, data interface{}) (*Envelope, error) {
	f.calls = append(f.calls, messageType)
	f.lastData = data
	raw, _ := json.Marshal(f.responses[messageType])
	return &Envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   "resp",
		MessageType: messageType + "Response",
		Data:        raw,
	}, nil
}

func modelList() AvailableModelsData {
	return AvailableModelsData{AvailableModels: []ModelEntry{
		{ModelLoaded: true, ModelName: "Akari", ModelID: "id-akari"},
		{ModelLoaded: false, ModelName: "Hiyori", ModelID: "id-hiyori"},
	}}
}

func TestLoadModelByNameAlreadyLoaded(t *testing.T) {
	req := &routedRequester{responses: map[string]interface{}{
		MsgAvailableModels: modelList(),
	}}
	c := NewCatalog(req, nil)

	require.NoError(t, c.LoadModelByName(context.Background(), "akari"))
	assert.Equal(t, []string{MsgAvailableModels}, req.calls)
}

func TestLoadModelByNameSwitchesModel(t *testing.T) {
	req := &routedRequester{responses: map[string]interface{}{
		MsgAvailableModels: modelList(),
	}}
	c := NewCatalog(req, nil)

	require.NoError(t, c.LoadModelByName(context.Background(), "Hiyori"))
	require.Equal(t, []string{MsgAvailableModels, MsgModelLoad}, req.calls)
	data, ok := req.lastData.(ModelLoadRequestData)
	require.True(t, ok)
	assert.Equal(t, "id-hiyori", data.ModelID)
}

func TestLoadModelByNameUnknown(t *testing.T) {
	req := &routedRequester{responses: map[string]interface{}{
		MsgAvailableModels: modelList(),
	}}
	c := NewCatalog(req, nil)

	err := c.LoadModelByName(context.Background(), "Nanami")
	require.Error(t, err)
	mErr, ok := err.(*MotionError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeModelNotLoaded, mErr.Code)
}

func TestCurrentModel(t *testing.T) {
	req := &routedRequester{responses: map[string]interface{}{
		MsgCurrentModel: CurrentModelData{ModelLoaded: true, ModelName: "Akari", ModelID: "id-akari"},
	}}
	c := NewCatalog(req, nil)

	model, err := c.CurrentModel(context.Background())
	require.NoError(t, err)
	assert.True(t, model.ModelLoaded)
	assert.Equal(t, "Akari", model.ModelName)
}

func TestEnsureParameterIsTransientOnHost(t *testing.T) {
	req := &fakeRequester{respType: "ParameterCreationResponse"}
	c := NewCatalog(req, nil)

	require.NoError(t, c.EnsureParameter(context.Background(), "VTSMotionEnergy", 0, 1, 0))

	data, ok := req.lastData.(ParamCreateRequestData)
	require.True(t, ok)
	assert.Equal(t, "VTSMotionEnergy", data.ParameterName)
	assert.True(t, data.DeleteWhenPluginDisconnects,
		"engine parameters must not outlive the session on the host")
}
