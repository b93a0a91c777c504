package api

import (
	"net/http"
	"testing"

	"github.com/frameloom/frameloom-studio/internal/entitlement"
	"github.com/frameloom/frameloom-studio/internal/project"
)

func TestProjectLifecycle(t *testing.T) {
	fx := setupAPI(t)

	created := fx.createProject("My Film", 12)
	if created.Title != "My Film" || created.FPS != 12 {
		t.Fatalf("created = %+v", created)
	}
	if created.CreditsMode != project.CreditsModePlain {
		t.Fatalf("credits_mode = %q, want plain default", created.CreditsMode)
	}

	rr := fx.request(http.MethodGet, "/api/v1/projects", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rr.Code)
	}
	list := decodeResponse[ProjectsResponse](t, rr)
	if len(list.Projects) != 1 || list.Projects[0].ID != created.ID {
		t.Fatalf("list = %+v", list.Projects)
	}

	rr = fx.request(http.MethodGet, "/api/v1/projects/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rr.Code)
	}
	got := decodeResponse[ProjectResponse](t, rr)
	if got.FrameCount == nil || *got.FrameCount != 0 {
		t.Fatalf("frame_count = %v, want 0", got.FrameCount)
	}

	rr = fx.request(http.MethodPatch, "/api/v1/projects/"+created.ID,
		`{"title":"Renamed","fps":500}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: status = %d body %s", rr.Code, rr.Body.String())
	}
	updated := decodeResponse[ProjectResponse](t, rr)
	if updated.Title != "Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.FPS != project.MaxFPS {
		t.Fatalf("fps = %d, want clamped to %d", updated.FPS, project.MaxFPS)
	}

	rr = fx.request(http.MethodPatch, "/api/v1/projects/"+created.ID,
		`{"title_card":"A Film by Jo","credits_mode":"plain","credits_text":"Thanks, Mum"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch credits: status = %d body %s", rr.Code, rr.Body.String())
	}
	updated = decodeResponse[ProjectResponse](t, rr)
	if updated.TitleCard != "A Film by Jo" || updated.CreditsText != "Thanks, Mum" {
		t.Fatalf("updated = %+v", updated)
	}

	// The free plan keeps projects around. Going pro unlocks delete.
	rr = fx.request(http.MethodDelete, "/api/v1/projects/"+created.ID, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("free delete: status = %d, want 403", rr.Code)
	}

	fx.oracle.SetPro(true)
	rr = fx.request(http.MethodDelete, "/api/v1/projects/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("pro delete: status = %d body %s", rr.Code, rr.Body.String())
	}

	rr = fx.request(http.MethodGet, "/api/v1/projects/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status = %d, want 404", rr.Code)
	}
}

func TestCreateProjectBadBody(t *testing.T) {
	fx := setupAPI(t)

	rr := fx.request(http.MethodPost, "/api/v1/projects", `{"title":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	resp := decodeResponse[ErrorResponse](t, rr)
	if resp.Code != "BAD_REQUEST" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestProjectLimitOnFreePlan(t *testing.T) {
	fx := setupAPI(t)

	for i := 0; i < entitlement.FreeMaxProjects; i++ {
		fx.createProject("Movie", 5)
	}

	rr := fx.request(http.MethodPost, "/api/v1/projects", `{"title":"One Too Many","fps":5}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	resp := decodeResponse[ErrorResponse](t, rr)
	if resp.Code != "PLAN_LIMIT" {
		t.Fatalf("code = %q, want PLAN_LIMIT", resp.Code)
	}
}

func TestUpdateProjectWithoutFieldsEchoesState(t *testing.T) {
	fx := setupAPI(t)
	created := fx.createProject("Unchanged", 5)

	rr := fx.request(http.MethodPatch, "/api/v1/projects/"+created.ID, `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decodeResponse[ProjectResponse](t, rr)
	if got.Title != "Unchanged" || got.FPS != 5 {
		t.Fatalf("got = %+v", got)
	}
}

func TestImportFrames(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Import Movie", 5)

	created := fx.importFrames(proj.ID, 2)
	if created.Created != 2 || len(created.Frames) != 2 {
		t.Fatalf("created = %+v", created)
	}
	for i, f := range created.Frames {
		if f.OrderIndex != i {
			t.Fatalf("frame %d order_index = %d", i, f.OrderIndex)
		}
		if f.Source != project.SourcePhotoImport {
			t.Fatalf("frame %d source = %q", i, f.Source)
		}
	}

	rr := fx.request(http.MethodGet, "/api/v1/projects/"+proj.ID+"/frames", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list frames: status = %d", rr.Code)
	}
	frames := decodeResponse[FramesResponse](t, rr)
	if len(frames.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames.Frames))
	}
}

func TestImportFramesRejectsNonImage(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Strict Movie", 5)

	rr := fx.upload("/api/v1/projects/"+proj.ID+"/frames",
		[]uploadFile{{field: "images", name: "notes.txt", data: []byte("hello")}}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestImportFramesRequiresFiles(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Empty Upload", 5)

	rr := fx.upload("/api/v1/projects/"+proj.ID+"/frames", nil,
		map[string]string{"note": "no files here"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestFrameImageStreams(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Image Movie", 5)
	created := fx.importFrames(proj.ID, 1)

	rr := fx.request(http.MethodGet,
		"/api/v1/projects/"+proj.ID+"/frames/"+created.Frames[0].ID+"/image", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Accept-Ranges") != "bytes" {
		t.Fatal("missing Accept-Ranges header")
	}
	if rr.Body.Len() == 0 {
		t.Fatal("empty image body")
	}

	rr = fx.request(http.MethodGet,
		"/api/v1/projects/"+proj.ID+"/frames/no-such-frame/image", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing frame: status = %d, want 404", rr.Code)
	}
}

func TestCaptureFrame(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Capture Movie", 5)

	rr := fx.upload("/api/v1/projects/"+proj.ID+"/frames/capture",
		[]uploadFile{{field: "image", name: "shot.png", data: apiPNGBytes(t, 64, 48)}},
		map[string]string{"stack_id": "stack-7"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	frame := decodeResponse[FrameResponse](t, rr)
	if frame.Source != project.SourceCapture {
		t.Fatalf("source = %q, want capture", frame.Source)
	}
	if frame.StackID != "stack-7" {
		t.Fatalf("stack_id = %q", frame.StackID)
	}
}

func TestDuplicateAndDeleteFrame(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Dup Movie", 5)
	created := fx.importFrames(proj.ID, 2)
	first := created.Frames[0]

	rr := fx.request(http.MethodPost,
		"/api/v1/projects/"+proj.ID+"/frames/"+first.ID+"/duplicate", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("duplicate: status = %d body %s", rr.Code, rr.Body.String())
	}
	dup := decodeResponse[FrameResponse](t, rr)
	if dup.ID == first.ID {
		t.Fatal("duplicate kept the source id")
	}

	rr = fx.request(http.MethodDelete,
		"/api/v1/projects/"+proj.ID+"/frames/"+dup.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status = %d body %s", rr.Code, rr.Body.String())
	}
	frames := decodeResponse[FramesResponse](t, rr)
	if len(frames.Frames) != 2 {
		t.Fatalf("frames after delete = %d, want 2", len(frames.Frames))
	}

	rr = fx.request(http.MethodDelete,
		"/api/v1/projects/"+proj.ID+"/frames/no-such-frame", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status = %d, want 404", rr.Code)
	}
}

func TestTimelineComposition(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Timeline Movie", 5)
	fx.importFrames(proj.ID, 3)

	rr := fx.request(http.MethodPatch, "/api/v1/projects/"+proj.ID,
		`{"title_card":"My Movie","credits_mode":"plain","credits_text":"By Jo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: status = %d", rr.Code)
	}

	rr = fx.request(http.MethodGet, "/api/v1/projects/"+proj.ID+"/timeline", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("timeline: status = %d", rr.Code)
	}
	tl := decodeResponse[TimelineResponse](t, rr)

	// 5 fps: title holds 10 slots, one line of credits scrolls for
	// ceil(3.15*5)=16 slots.
	if tl.FrameCount != 3 {
		t.Fatalf("frame_count = %d, want 3", tl.FrameCount)
	}
	if tl.TotalSlots != 29 {
		t.Fatalf("total_slots = %d, want 29", tl.TotalSlots)
	}
	if tl.TotalSeconds < 5.79 || tl.TotalSeconds > 5.81 {
		t.Fatalf("total_seconds = %f, want 5.8", tl.TotalSeconds)
	}
	if len(tl.Items) != 29 {
		t.Fatalf("items = %d, want 29", len(tl.Items))
	}
	if tl.Items[0].Kind != "title" || tl.Items[0].Total != 10 {
		t.Fatalf("items[0] = %+v", tl.Items[0])
	}
	if tl.Items[10].Kind != "frame" || tl.Items[10].Frame == nil {
		t.Fatalf("items[10] = %+v", tl.Items[10])
	}
	last := tl.Items[len(tl.Items)-1]
	if last.Kind != "credits" || last.Total != 16 || last.Index != 15 {
		t.Fatalf("last item = %+v", last)
	}
}

func TestTimelineReordering(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Reorder Movie", 5)
	created := fx.importFrames(proj.ID, 3)
	a, b, c := created.Frames[0].ID, created.Frames[1].ID, created.Frames[2].ID

	checkOrder := func(t *testing.T, frames FramesResponse, want []string) {
		t.Helper()
		if len(frames.Frames) != len(want) {
			t.Fatalf("frames = %d, want %d", len(frames.Frames), len(want))
		}
		for i, id := range want {
			if frames.Frames[i].ID != id {
				t.Fatalf("frames[%d] = %s, want %s", i, frames.Frames[i].ID, id)
			}
			if frames.Frames[i].OrderIndex != i {
				t.Fatalf("frames[%d] order_index = %d", i, frames.Frames[i].OrderIndex)
			}
		}
	}

	rr := fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/timeline/move",
		`{"from":0,"to":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move: status = %d body %s", rr.Code, rr.Body.String())
	}
	checkOrder(t, decodeResponse[FramesResponse](t, rr), []string{b, c, a})

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/timeline/move-by-id",
		`{"frame_id":"`+a+`","to":0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move-by-id: status = %d body %s", rr.Code, rr.Body.String())
	}
	checkOrder(t, decodeResponse[FramesResponse](t, rr), []string{a, b, c})

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/timeline/move-item",
		`{"from":0,"to":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move-item: status = %d body %s", rr.Code, rr.Body.String())
	}
	checkOrder(t, decodeResponse[FramesResponse](t, rr), []string{b, a, c})

	rr = fx.request(http.MethodDelete, "/api/v1/projects/"+proj.ID+"/timeline/frames/0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete content frame: status = %d body %s", rr.Code, rr.Body.String())
	}
	checkOrder(t, decodeResponse[FramesResponse](t, rr), []string{a, c})

	rr = fx.request(http.MethodDelete, "/api/v1/projects/"+proj.ID+"/timeline/frames/potato", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad index: status = %d, want 400", rr.Code)
	}

	rr = fx.request(http.MethodPost, "/api/v1/projects/"+proj.ID+"/timeline/move-by-id",
		`{"to":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing frame_id: status = %d, want 400", rr.Code)
	}
}

func TestAudioLifecycle(t *testing.T) {
	fx := setupAPI(t)
	proj := fx.createProject("Audio Movie", 5)

	rr := fx.upload("/api/v1/projects/"+proj.ID+"/audio",
		[]uploadFile{{field: "audio", name: "song.mp3", data: []byte("not real mp3 bytes")}}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("attach: status = %d body %s", rr.Code, rr.Body.String())
	}
	got := decodeResponse[ProjectResponse](t, rr)
	if got.Audio == nil {
		t.Fatal("audio missing from response")
	}
	if got.Audio.DisplayName != "song.mp3" || got.Audio.Duration != 42 {
		t.Fatalf("audio = %+v", got.Audio)
	}
	if got.Audio.SelectionStart != 0 || got.Audio.SelectionEnd != 42 {
		t.Fatalf("selection = [%f, %f], want full span", got.Audio.SelectionStart, got.Audio.SelectionEnd)
	}

	rr = fx.request(http.MethodPatch, "/api/v1/projects/"+proj.ID+"/audio/selection",
		`{"start":5,"end":20}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("selection: status = %d body %s", rr.Code, rr.Body.String())
	}
	got = decodeResponse[ProjectResponse](t, rr)
	if got.Audio.SelectionStart != 5 || got.Audio.SelectionEnd != 20 {
		t.Fatalf("selection = [%f, %f]", got.Audio.SelectionStart, got.Audio.SelectionEnd)
	}

	rr = fx.request(http.MethodPatch, "/api/v1/projects/"+proj.ID+"/audio/selection",
		`{"start":7,"end":7}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty selection: status = %d, want 400", rr.Code)
	}

	rr = fx.request(http.MethodDelete, "/api/v1/projects/"+proj.ID+"/audio", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("remove: status = %d", rr.Code)
	}
	got = decodeResponse[ProjectResponse](t, rr)
	if got.Audio != nil {
		t.Fatalf("audio still present: %+v", got.Audio)
	}

	rr = fx.request(http.MethodPatch, "/api/v1/projects/"+proj.ID+"/audio/selection",
		`{"start":0,"end":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("selection without audio: status = %d, want 400", rr.Code)
	}
}
