package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/tgienger/depplan/internal/board"
	"github.com/tgienger/depplan/internal/graph"
	"github.com/tgienger/depplan/internal/models"
	"github.com/tgienger/depplan/internal/ui/keys"
	"github.com/tgienger/depplan/internal/ui/styles"
)

// column geometry: border (2) + padding (2) + card text
const (
	cardWidth   = 22
	columnWidth = cardWidth + 4
)

type boardMode int

const (
	modeBoard boardMode = iota
	modeTaskForm
	modeListForm
	modeConfirmDelete
	modeDetail
	modeDeps
	modePanel
)

// BoardView shows a project's lists as columns and turns keyboard
// grab/move/drop gestures into board drags
type BoardView struct {
	env     *Env
	project models.Project
	sync    *board.Synchronizer
	styles  *styles.Styles
	keys    keys.KeyMap

	width  int
	height int

	lists   []models.BoardList
	col     int
	row     int // -1 selects the list header
	scrollX int
	loaded  bool

	// grab state
	grabbed *board.Key
	dropCol int
	dropRow int

	mode      boardMode
	taskForm  *taskForm
	listForm  *listForm
	deps      *depPicker
	deleteKey board.Key
	panel     panel

	busy      string
	spinner   spinner.Model
	ticking   bool
	status    string
	statusErr bool

	changes     <-chan struct{}
	unsubscribe func()
	done        chan struct{}
	closed      bool

	showHelpPopup bool
}

type (
	boardChangedMsg struct{}
	syncEventMsg    struct{ ev board.Event }
	boardLoadedMsg  struct{ err error }
	commandDoneMsg  struct {
		action string
		err    error
	}
)

// NewBoardView opens the board of project. Close must be called when the
// view is discarded.
func NewBoardView(env *Env, project models.Project) *BoardView {
	store := board.NewStore(project.ID)
	sync := board.NewSynchronizer(store, env.Client, board.Options{
		Retry: board.RetryPolicy{
			Attempts:  env.Config.Sync.RetryAttempts,
			BaseDelay: env.Config.Sync.RetryBaseDelay,
			MaxDelay:  env.Config.Sync.RetryMaxDelay,
		},
		Journal: env.DB,
	})
	changes, unsubscribe := store.Subscribe()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Accent)

	return &BoardView{
		env:         env,
		project:     project,
		sync:        sync,
		styles:      styles.NewStyles(),
		keys:        keys.DefaultKeyMap(),
		row:         -1,
		spinner:     sp,
		changes:     changes,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
}

// Project returns the project on display
func (v *BoardView) Project() models.Project { return v.project }

// Close stops background persistence and the store subscription
func (v *BoardView) Close() {
	if v.closed {
		return
	}
	v.closed = true
	close(v.done)
	v.unsubscribe()
	v.sync.Close()
}

func (v *BoardView) Init() tea.Cmd {
	v.busy = "Loading board"
	return tea.Batch(v.load, v.waitForChange, v.waitForEvent, v.startTick())
}

func (v *BoardView) load() tea.Msg {
	ctx, cancel := v.env.context()
	defer cancel()
	return boardLoadedMsg{err: v.sync.Refresh(ctx)}
}

func (v *BoardView) waitForChange() tea.Msg {
	select {
	case <-v.changes:
		return boardChangedMsg{}
	case <-v.done:
		return nil
	}
}

func (v *BoardView) waitForEvent() tea.Msg {
	select {
	case ev := <-v.sync.Events():
		return syncEventMsg{ev: ev}
	case <-v.done:
		return nil
	}
}

func (v *BoardView) startTick() tea.Cmd {
	if v.ticking {
		return nil
	}
	v.ticking = true
	return v.spinner.Tick
}

func (v *BoardView) isBusy() bool {
	return v.busy != "" || v.sync.Pending() > 0
}

// run executes a board command off the update loop
func (v *BoardView) run(action string, fn func() error) tea.Cmd {
	v.busy = action
	v.status = ""
	projectID := v.project.ID
	return tea.Batch(v.startTick(), func() tea.Msg {
		err := fn()
		if err != nil {
			log.Warn().Err(err).Str("action", action).Int64("project_id", projectID).Msg("views.run: board command failed")
		}
		return commandDoneMsg{action: action, err: err}
	})
}

func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		if v.panel != nil {
			var cmd tea.Cmd
			v.panel, cmd = v.panel.Update(msg)
			return v, cmd
		}
		return v, nil

	case spinner.TickMsg:
		if !v.isBusy() {
			v.ticking = false
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case boardChangedMsg:
		v.snapshot()
		var cmd tea.Cmd
		if v.panel != nil {
			v.panel, cmd = v.panel.Update(msg)
		}
		return v, tea.Batch(v.waitForChange, cmd)

	case syncEventMsg:
		v.handleSyncEvent(msg.ev)
		return v, tea.Batch(v.waitForEvent, v.env.guard(msg.ev.Err))

	case boardLoadedMsg:
		v.busy = ""
		v.loaded = true
		if msg.err != nil {
			v.setStatus(errorText(msg.err), true)
			return v, v.env.guard(msg.err)
		}
		v.snapshot()
		return v, nil

	case commandDoneMsg:
		return v, v.commandDone(msg)

	case closePanel:
		v.panel = nil
		v.mode = modeBoard
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		switch v.mode {
		case modeTaskForm:
			return v.updateTaskForm(msg)
		case modeListForm:
			return v.updateListForm(msg)
		case modeConfirmDelete:
			return v.updateConfirmDelete(msg)
		case modeDetail:
			return v.updateDetail(msg)
		case modeDeps:
			return v.updateDeps(msg)
		case modePanel:
			var cmd tea.Cmd
			v.panel, cmd = v.panel.Update(msg)
			return v, cmd
		}
		if v.grabbed != nil {
			return v.updateGrabbing(msg), nil
		}
		return v.updateBoard(msg)
	}

	if v.panel != nil {
		var cmd tea.Cmd
		v.panel, cmd = v.panel.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *BoardView) commandDone(msg commandDoneMsg) tea.Cmd {
	if v.busy == msg.action {
		v.busy = ""
	}
	if msg.err != nil {
		text := errorText(msg.err)
		switch v.mode {
		case modeTaskForm:
			v.taskForm.err = text
		case modeListForm:
			v.listForm.err = text
		case modeDeps:
			v.deps.err = text
		case modeConfirmDelete:
			v.mode = modeBoard
			v.setStatus(text, true)
		default:
			v.setStatus(text, true)
		}
		return v.env.guard(msg.err)
	}

	switch v.mode {
	case modeTaskForm, modeListForm, modeConfirmDelete:
		v.mode = modeBoard
		v.taskForm = nil
		v.listForm = nil
	case modeDeps:
		v.deps.err = ""
	}
	v.setStatus(msg.action+" done", false)
	return nil
}

func (v *BoardView) handleSyncEvent(ev board.Event) {
	switch ev.Kind {
	case board.EventSyncFailed:
		v.setStatus(fmt.Sprintf("Could not save %s %d after retries: %s. Board reloaded from server.", ev.Key.Kind, ev.Key.ID, errorText(ev.Err)), true)
	case board.EventRefreshFailed:
		v.setStatus("Could not refresh the board: "+errorText(ev.Err), true)
	}
}

func (v *BoardView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

// snapshot copies the store into the view, keeping the selection on the
// same entity when it still exists
func (v *BoardView) snapshot() {
	sel, hasSel := v.selectedKey()
	v.lists = v.sync.Store().Lists()
	if hasSel {
		v.follow(sel)
	}
	v.clampCursor()
	v.keepGrab()
	if v.deps != nil {
		v.deps.reload(v.lists)
	}
}

// keepGrab revalidates an in-progress move against a fresh board. The
// grab is dropped when the grabbed entity or every list is gone.
func (v *BoardView) keepGrab() {
	if v.grabbed == nil {
		return
	}
	store := v.sync.Store()
	_, taskOK := store.Task(v.grabbed.ID)
	_, listOK := store.List(v.grabbed.ID)
	if len(v.lists) == 0 || (v.grabbed.IsTask() && !taskOK) || (v.grabbed.IsList() && !listOK) {
		v.grabbed = nil
		v.setStatus("Move canceled: the board changed", true)
		return
	}
	v.dropCol = clamp(v.dropCol, 0, len(v.lists)-1)
	v.clampDrop()
}

func (v *BoardView) selectedKey() (board.Key, bool) {
	if v.col < 0 || v.col >= len(v.lists) {
		return board.Key{}, false
	}
	l := v.lists[v.col]
	if v.row < 0 {
		return board.ListKey(l.ID), true
	}
	if v.row < len(l.Tasks) {
		return board.TaskKey(l.Tasks[v.row].ID), true
	}
	return board.ListKey(l.ID), true
}

func (v *BoardView) follow(k board.Key) {
	for ci, l := range v.lists {
		if k.IsList() && l.ID == k.ID {
			v.col, v.row = ci, -1
			return
		}
		for ri, t := range l.Tasks {
			if k.IsTask() && t.ID == k.ID {
				v.col, v.row = ci, ri
				return
			}
		}
	}
}

func (v *BoardView) clampCursor() {
	if len(v.lists) == 0 {
		v.col, v.row = 0, -1
		return
	}
	v.col = clamp(v.col, 0, len(v.lists)-1)
	v.row = clamp(v.row, -1, len(v.lists[v.col].Tasks)-1)
}

func (v *BoardView) selectedTask() (models.Task, bool) {
	if v.col >= len(v.lists) || v.row < 0 || v.row >= len(v.lists[v.col].Tasks) {
		return models.Task{}, false
	}
	return v.lists[v.col].Tasks[v.row], true
}

func (v *BoardView) selectedList() (models.BoardList, bool) {
	if v.col >= len(v.lists) {
		return models.BoardList{}, false
	}
	return v.lists[v.col], true
}

func (v *BoardView) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToProjects{} }
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
	case key.Matches(msg, v.keys.Left):
		if v.col > 0 {
			v.col--
			v.clampCursor()
		}
	case key.Matches(msg, v.keys.Right):
		if v.col < len(v.lists)-1 {
			v.col++
			v.clampCursor()
		}
	case key.Matches(msg, v.keys.Up):
		if v.row > -1 {
			v.row--
		}
	case key.Matches(msg, v.keys.Down):
		if l, ok := v.selectedList(); ok && v.row < len(l.Tasks)-1 {
			v.row++
		}
	case key.Matches(msg, v.keys.Grab):
		v.grab()
	case key.Matches(msg, v.keys.New):
		if l, ok := v.selectedList(); ok {
			v.taskForm = newTaskForm(l.ID, nil)
			v.mode = modeTaskForm
			return v, v.taskForm.init()
		}
		v.setStatus("Create a list first (N)", true)
	case key.Matches(msg, v.keys.NewList):
		v.listForm = newListForm(nil)
		v.mode = modeListForm
		return v, v.listForm.init()
	case key.Matches(msg, v.keys.Rename):
		if l, ok := v.selectedList(); ok {
			v.listForm = newListForm(&l)
			v.mode = modeListForm
			return v, v.listForm.init()
		}
	case key.Matches(msg, v.keys.Edit):
		if t, ok := v.selectedTask(); ok {
			v.taskForm = newTaskForm(t.ListID, &t)
			v.mode = modeTaskForm
			return v, v.taskForm.init()
		}
		if l, ok := v.selectedList(); ok {
			v.listForm = newListForm(&l)
			v.mode = modeListForm
			return v, v.listForm.init()
		}
	case key.Matches(msg, v.keys.Enter):
		if _, ok := v.selectedTask(); ok {
			v.mode = modeDetail
		}
	case key.Matches(msg, v.keys.Delete):
		if k, ok := v.selectedKey(); ok {
			v.deleteKey = k
			v.mode = modeConfirmDelete
		}
	case key.Matches(msg, v.keys.Deps):
		return v, v.openDeps()
	case key.Matches(msg, v.keys.Refresh):
		v.busy = "Refreshing"
		return v, tea.Batch(v.startTick(), v.load)
	case key.Matches(msg, v.keys.Graph):
		return v, v.openPanel(newGraphPanel(v.styles, v.project.Name, v.sync.Store().Lists, v.width, v.height))
	case key.Matches(msg, v.keys.Gantt):
		return v, v.openPanel(newGanttPanel(v.styles, v.project.Name, v.sync.Store().Lists, v.width, v.height))
	case key.Matches(msg, v.keys.History):
		return v, v.openPanel(newHistoryPanel(v.env, v.styles, v.project.ID, v.width, v.height))
	case key.Matches(msg, v.keys.Collab):
		return v, v.openPanel(newCollabPanel(v.env, v.styles, v.project.ID, v.width, v.height))
	}
	return v, nil
}

func (v *BoardView) openPanel(p panel) tea.Cmd {
	v.panel = p
	v.mode = modePanel
	return p.Init()
}

func (v *BoardView) openDeps() tea.Cmd {
	t, ok := v.selectedTask()
	if !ok {
		return nil
	}
	v.deps = newDepPicker(t.ID, v.lists)
	v.mode = modeDeps
	return nil
}

// grab picks up the selected task, or the list when its header is selected
func (v *BoardView) grab() {
	k, ok := v.selectedKey()
	if !ok {
		return
	}
	v.grabbed = &k
	v.dropCol = v.col
	v.dropRow = max(v.row, 0)
	v.setStatus("Moving "+v.grabbedName()+": arrows choose a spot, space drops, esc cancels", false)
}

func (v *BoardView) grabbedName() string {
	if v.grabbed == nil {
		return ""
	}
	if v.grabbed.IsList() {
		if l, ok := v.sync.Store().List(v.grabbed.ID); ok {
			return "list " + l.Name
		}
		return "list"
	}
	if t, ok := v.sync.Store().Task(v.grabbed.ID); ok {
		return t.Name
	}
	return "task"
}

func (v *BoardView) updateGrabbing(msg tea.KeyMsg) tea.Model {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.grabbed = nil
		v.setStatus("", false)
	case key.Matches(msg, v.keys.Left):
		if v.dropCol > 0 {
			v.dropCol--
			v.clampDrop()
		}
	case key.Matches(msg, v.keys.Right):
		if v.dropCol < len(v.lists)-1 {
			v.dropCol++
			v.clampDrop()
		}
	case key.Matches(msg, v.keys.Up):
		if v.grabbed.IsTask() && v.dropRow > 0 {
			v.dropRow--
		}
	case key.Matches(msg, v.keys.Down):
		if v.grabbed.IsTask() && v.dropRow < len(v.lists[v.dropCol].Tasks) {
			v.dropRow++
		}
	case key.Matches(msg, v.keys.Grab), key.Matches(msg, v.keys.Enter):
		v.drop()
	}
	return v
}

func (v *BoardView) clampDrop() {
	v.dropRow = clamp(v.dropRow, 0, len(v.lists[v.dropCol].Tasks))
}

// dropTarget is the key the grabbed entity would land on. A task dropped
// past the last card lands on the list itself, which appends it.
func (v *BoardView) dropTarget() (board.Key, bool) {
	if v.grabbed == nil || v.dropCol >= len(v.lists) {
		return board.Key{}, false
	}
	target := v.lists[v.dropCol]
	if v.grabbed.IsList() {
		return board.ListKey(target.ID), true
	}
	if v.dropRow < len(target.Tasks) {
		return board.TaskKey(target.Tasks[v.dropRow].ID), true
	}
	return board.ListKey(target.ID), true
}

func (v *BoardView) drop() {
	active := *v.grabbed
	over, ok := v.dropTarget()
	v.grabbed = nil
	v.setStatus("", false)
	if !ok {
		return
	}
	if v.sync.HandleDragEnd(board.DragEnd{Active: active, Over: over}) {
		v.lists = v.sync.Store().Lists()
		v.follow(active)
		v.clampCursor()
	}
}

func (v *BoardView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		k := v.deleteKey
		env, sync := v.env, v.sync
		if k.IsList() {
			return v, v.run("Delete list", func() error {
				ctx, cancel := env.context()
				defer cancel()
				return sync.DeleteList(ctx, k.ID)
			})
		}
		return v, v.run("Delete task", func() error {
			ctx, cancel := env.context()
			defer cancel()
			return sync.DeleteTask(ctx, k.ID)
		})
	case "n", "N", "esc":
		v.mode = modeBoard
	}
	return v, nil
}

func (v *BoardView) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := v.selectedTask()
	if !ok {
		v.mode = modeBoard
		return v, nil
	}
	switch {
	case key.Matches(msg, v.keys.Back):
		v.mode = modeBoard
	case key.Matches(msg, v.keys.Edit):
		v.taskForm = newTaskForm(t.ListID, &t)
		v.mode = modeTaskForm
		return v, v.taskForm.init()
	case key.Matches(msg, v.keys.Deps):
		return v, v.openDeps()
	case key.Matches(msg, v.keys.Delete):
		v.deleteKey = board.TaskKey(t.ID)
		v.mode = modeConfirmDelete
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *BoardView) updateTaskForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	result, cmd := v.taskForm.update(msg, v.keys)
	switch result {
	case formCancel:
		v.mode = modeBoard
		v.taskForm = nil
		return v, nil
	case formSubmit:
		return v, v.submitTaskForm()
	}
	return v, cmd
}

func (v *BoardView) submitTaskForm() tea.Cmd {
	f := v.taskForm
	fields, err := f.fields()
	if err != nil {
		f.err = errorText(err)
		return nil
	}
	f.err = ""
	env, sync := v.env, v.sync
	if f.taskID == 0 {
		listID := f.listID
		return v.run("Create task", func() error {
			ctx, cancel := env.context()
			defer cancel()
			_, err := sync.CreateTask(ctx, listID, fields)
			return err
		})
	}
	id := f.taskID
	return v.run("Save task", func() error {
		ctx, cancel := env.context()
		defer cancel()
		return sync.EditTask(ctx, id, fields)
	})
}

func (v *BoardView) updateListForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	result, cmd := v.listForm.update(msg, v.keys)
	switch result {
	case formCancel:
		v.mode = modeBoard
		v.listForm = nil
		return v, nil
	case formSubmit:
		name := v.listForm.name.Value()
		env, sync := v.env, v.sync
		if v.listForm.listID == 0 {
			return v, v.run("Create list", func() error {
				ctx, cancel := env.context()
				defer cancel()
				_, err := sync.CreateList(ctx, name)
				return err
			})
		}
		id := v.listForm.listID
		return v, v.run("Rename list", func() error {
			ctx, cancel := env.context()
			defer cancel()
			return sync.RenameList(ctx, id, name)
		})
	}
	return v, cmd
}

func (v *BoardView) updateDeps(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.deps = nil
		v.mode = modeBoard
		return v, nil
	case key.Matches(msg, v.keys.Up):
		v.deps.move(-1)
	case key.Matches(msg, v.keys.Down):
		v.deps.move(1)
	case key.Matches(msg, v.keys.Grab), key.Matches(msg, v.keys.Enter):
		cand, ok := v.deps.current()
		if !ok {
			return v, nil
		}
		taskID := v.deps.taskID
		env, sync := v.env, v.sync
		if v.deps.selected[cand.ID] {
			return v, v.run("Remove dependency", func() error {
				ctx, cancel := env.context()
				defer cancel()
				return sync.RemoveDependency(ctx, taskID, cand.ID)
			})
		}
		return v, v.run("Add dependency", func() error {
			ctx, cancel := env.context()
			defer cancel()
			return sync.AddDependency(ctx, taskID, cand.ID)
		})
	}
	return v, nil
}

// View renders the view
func (v *BoardView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	switch v.mode {
	case modeTaskForm:
		return v.taskForm.view(v.styles, v.width, v.height)
	case modeListForm:
		return v.listForm.view(v.styles, v.width, v.height)
	case modeConfirmDelete:
		return v.renderDeleteConfirm()
	case modeDetail:
		return v.renderDetail()
	case modeDeps:
		return v.deps.view(v.styles, v.width, v.height)
	case modePanel:
		return v.panel.View()
	}

	s := v.styles
	header := s.Title.Render(v.project.Name)
	if v.sync.Store().Stale() && v.loaded {
		header += s.TitleMuted.Render("  (out of date)")
	}

	var body string
	switch {
	case !v.loaded && len(v.lists) == 0:
		body = s.TitleMuted.Render("Loading...")
	case len(v.lists) == 0:
		body = s.TitleMuted.Render("No lists yet. Press 'N' to create one.")
	default:
		body = v.renderColumns()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.StatusBar.Render(header),
		body,
		v.renderStatusBar(),
		v.renderHelp(),
	)
}

func (v *BoardView) visibleColumns() int {
	return max(1, v.width/columnWidth)
}

// ensureVisible scrolls horizontally so the focused column shows
func (v *BoardView) ensureVisible() {
	focus := v.col
	if v.grabbed != nil {
		focus = v.dropCol
	}
	visible := v.visibleColumns()
	if focus < v.scrollX {
		v.scrollX = focus
	} else if focus >= v.scrollX+visible {
		v.scrollX = focus - visible + 1
	}
	v.scrollX = clamp(v.scrollX, 0, max(0, len(v.lists)-visible))
}

func (v *BoardView) renderColumns() string {
	v.ensureVisible()
	end := min(len(v.lists), v.scrollX+v.visibleColumns())
	dirty := v.sync.Dirty()

	cols := make([]string, 0, end-v.scrollX)
	for ci := v.scrollX; ci < end; ci++ {
		cols = append(cols, v.renderColumn(ci, dirty))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	if v.scrollX > 0 || end < len(v.lists) {
		out += "\n" + v.styles.TitleMuted.Render(fmt.Sprintf("lists %d-%d of %d", v.scrollX+1, end, len(v.lists)))
	}
	return out
}

func (v *BoardView) renderColumn(ci int, dirty map[board.Key]error) string {
	s := v.styles
	l := v.lists[ci]
	focused := ci == v.col && v.grabbed == nil
	grabbingList := v.grabbed != nil && v.grabbed.IsList()
	grabbingTask := v.grabbed != nil && v.grabbed.IsTask()

	title := clip(l.Name, cardWidth-4) + s.TitleMuted.Render(fmt.Sprintf(" %d", len(l.Tasks)))
	if _, bad := dirty[board.ListKey(l.ID)]; bad {
		title = s.Error.Render("! ") + title
	}
	titleStyle := s.ColumnTitle
	if focused && v.row < 0 {
		titleStyle = titleStyle.Background(styles.Current.Selection)
	}
	if grabbingList && v.grabbed.ID == l.ID {
		titleStyle = s.CardGrabbed
	}
	rows := []string{titleStyle.Width(cardWidth).Render(title), ""}

	// cards shown before the drop marker move down as the marker does
	maxCards := max(1, (v.height-9)/2)
	start := 0
	switch {
	case focused && v.row >= maxCards:
		start = v.row - maxCards + 1
	case grabbingTask && ci == v.dropCol && v.dropRow >= maxCards:
		start = v.dropRow - maxCards + 1
	}

	// moving a card down its own list lands it after the target card
	markerAt, markerAfter := -1, false
	if grabbingTask && ci == v.dropCol {
		markerAt = v.dropRow
		for ri, t := range l.Tasks {
			if t.ID == v.grabbed.ID {
				markerAfter = v.dropRow > ri
				break
			}
		}
	}
	marker := s.Warning.Render(strings.Repeat("─", cardWidth))

	for ri := start; ri < len(l.Tasks) && ri < start+maxCards; ri++ {
		if ri == markerAt && !markerAfter {
			rows = append(rows, marker)
		}
		rows = append(rows, v.renderCard(l.Tasks[ri], focused && ri == v.row, dirty))
		if ri == markerAt && markerAfter {
			rows = append(rows, marker)
		}
	}
	if markerAt >= len(l.Tasks) {
		rows = append(rows, marker)
	}
	if len(l.Tasks) == 0 && !(grabbingTask && ci == v.dropCol) {
		rows = append(rows, s.TitleMuted.Render("empty"))
	}
	if hidden := len(l.Tasks) - start - maxCards; hidden > 0 {
		rows = append(rows, s.TitleMuted.Render(fmt.Sprintf("+%d more", hidden)))
	}

	style := s.Column
	switch {
	case grabbingList && ci == v.dropCol:
		style = s.ColumnGrabbed
	case grabbingTask && ci == v.dropCol:
		style = s.ColumnGrabbed
	case focused:
		style = s.ColumnFocused
	}
	return style.Width(cardWidth + 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (v *BoardView) renderCard(t models.Task, selected bool, dirty map[board.Key]error) string {
	s := v.styles
	name := t.Name
	if len(t.DependencyIDs) > 0 {
		name = fmt.Sprintf("%s ⇠%d", name, len(t.DependencyIDs))
	}
	prefix := ""
	if _, bad := dirty[board.TaskKey(t.ID)]; bad {
		prefix = "! "
	}

	style := s.Card
	switch {
	case v.grabbed != nil && v.grabbed.IsTask() && v.grabbed.ID == t.ID:
		style = s.CardGrabbed
	case selected:
		style = s.CardSelected
	}
	line := style.Width(cardWidth).Render(clip(prefix+name, cardWidth))

	dates := cardDates(t)
	if dates == "" {
		return line + "\n"
	}
	return line + "\n" + s.CardDates.Render(dates)
}

func cardDates(t models.Task) string {
	start, due := dateValue(t.StartDate), dateValue(t.DueDate)
	switch {
	case start != "" && due != "":
		return start[5:] + " → " + due[5:]
	case due != "":
		return "due " + due
	case start != "":
		return "from " + start
	}
	return ""
}

func (v *BoardView) renderStatusBar() string {
	s := v.styles
	var parts []string
	if v.isBusy() {
		label := v.busy
		if label == "" {
			label = "Saving"
		}
		if n := v.sync.Pending(); n > 0 {
			label = fmt.Sprintf("%s (%d pending)", label, n)
		}
		parts = append(parts, s.Busy.Render(v.spinner.View()+" "+label))
	}
	if v.status != "" {
		style := s.TitleMuted
		if v.statusErr {
			style = s.Error
		}
		parts = append(parts, style.Render(v.status))
	}
	if len(parts) == 0 {
		return ""
	}
	return s.StatusBar.Width(max(v.width-2, 20)).Render(strings.Join(parts, "  "))
}

func (v *BoardView) renderHelp() string {
	if v.grabbed != nil {
		return helpLine(v.styles, "←→↑↓", "move", "space", "drop", "esc", "cancel")
	}
	if v.width > 0 && v.width < 70 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return helpLine(v.styles,
		"space", "grab",
		"n", "task",
		"N", "list",
		"e", "edit",
		"d", "del",
		"D", "deps",
		"g/t", "graph/timeline",
		"a", "activity",
		"c", "people",
		"esc", "back",
	)
}

func (v *BoardView) renderHelpPopup() string {
	return helpPopup(v.styles, v.width, v.height, [][2]string{
		{"←→↑↓", "select list or task"},
		{"space", "grab, then drop"},
		{"↵", "task details"},
		{"n", "new task in list"},
		{"N", "new list"},
		{"e", "edit task / rename list"},
		{"r", "rename list"},
		{"d", "delete"},
		{"D", "dependencies"},
		{"g", "dependency graph"},
		{"t", "timeline"},
		{"a", "activity history"},
		{"c", "collaborators"},
		{"ctrl+r", "refresh"},
		{"esc", "back to projects"},
		{"q", "quit"},
	})
}

func (v *BoardView) renderDeleteConfirm() string {
	if v.deleteKey.IsList() {
		name := "this list"
		if l, ok := v.sync.Store().List(v.deleteKey.ID); ok {
			name = fmt.Sprintf("%q", l.Name)
		}
		return confirmDialog(v.styles, v.width, v.height, "Delete List?",
			fmt.Sprintf("Delete %s and all of its tasks?", name))
	}
	name := "this task"
	if t, ok := v.sync.Store().Task(v.deleteKey.ID); ok {
		name = fmt.Sprintf("%q", t.Name)
	}
	return confirmDialog(v.styles, v.width, v.height, "Delete Task?", "Delete "+name+"?")
}

func (v *BoardView) renderDetail() string {
	t, ok := v.selectedTask()
	if !ok {
		return ""
	}
	s := v.styles
	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)
	g := graph.Build(models.FlattenTasks(v.lists))

	names := func(ids []int64) string {
		if len(ids) == 0 {
			return s.TitleMuted.Render("None")
		}
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if n, ok := g.Node(id); ok {
				out = append(out, n.Name)
			}
		}
		return lipgloss.NewStyle().Width(textWidth).Render(strings.Join(out, ", "))
	}

	desc := t.Description
	if desc == "" {
		desc = s.TitleMuted.Render("No description")
	}
	start, due := dateValue(t.StartDate), dateValue(t.DueDate)
	if start == "" {
		start = "-"
	}
	if due == "" {
		due = "-"
	}
	listName := ""
	if l, ok := v.selectedList(); ok {
		listName = l.Name
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.MarginBottom(1).Render(t.Name),
		s.TitleMuted.Render("List"),
		listName,
		"",
		s.TitleMuted.Render("Description"),
		lipgloss.NewStyle().Width(textWidth).Render(desc),
		"",
		s.TitleMuted.Render("Start / Due"),
		start+"  →  "+due,
		"",
		s.TitleMuted.Render("Depends on"),
		names(g.Prerequisites(t.ID)),
		"",
		s.TitleMuted.Render("Blocks"),
		names(g.Dependents(t.ID)),
		"",
		helpLine(s, "e", "edit", "D", "dependencies", "d", "delete", "esc", "back"),
	)
	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}

func clip(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
