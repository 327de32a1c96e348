package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/specialistvlad/flowcanvas/internal/graph"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/node"
	"github.com/specialistvlad/flowcanvas/internal/nodeid"
)

// PlaceholderLabel names a group that no task owns.
const PlaceholderLabel = "Unassigned attachments"

var (
	// ErrWrongKind is returned when an operation receives a node of the wrong kind.
	ErrWrongKind = errors.New("lifecycle: wrong node kind")
	// ErrAlreadyAttached is returned when attaching an attachment that is
	// connected or contained elsewhere.
	ErrAlreadyAttached = errors.New("lifecycle: attachment already attached")
)

// Manager applies group lifecycle transitions to a graph model.
type Manager struct {
	g     *graph.Model
	cfg   layout.Config
	newID nodeid.Generator
}

// New creates a Manager. newID mints ids for the groups and edges it creates.
func New(g *graph.Model, cfg layout.Config, newID nodeid.Generator) *Manager {
	if newID == nil {
		newID = nodeid.NewTemp
	}
	return &Manager{g: g, cfg: cfg, newID: newID}
}

// GroupLabel is the header shown on a container owned by the task.
func GroupLabel(task node.Node) string {
	if task.Task.Label == "" {
		return "Attachments"
	}
	return fmt.Sprintf("%s · attachments", task.Task.Label)
}

// Attach connects a freestanding attachment to a task, moving the task to
// the next state: Unattached gets a direct edge, Direct is promoted to a
// container, Grouped appends to the container.
func (m *Manager) Attach(ctx context.Context, taskID, attachmentID nodeid.ID) (Transition, error) {
	task, err := m.nodeOfKind(taskID, node.KindTask)
	if err != nil {
		return TransitionNone, err
	}
	att, err := m.nodeOfKind(attachmentID, node.KindAttachment)
	if err != nil {
		return TransitionNone, err
	}
	if att.HasParent() || len(m.g.EdgesTouching(attachmentID)) > 0 {
		return TransitionNone, fmt.Errorf("%w: %s", ErrAlreadyAttached, attachmentID)
	}

	st := StateOf(m.g, taskID)
	logger := ctxlog.FromContext(ctx).With("task", taskID, "attachment", attachmentID, "state", st.Kind.String())

	switch st.Kind {
	case Unattached:
		if err := m.attachDirect(task, attachmentID); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Attachment connected directly.")
		return TransitionDirect, nil

	case Direct:
		ids := make([]nodeid.ID, 0, len(st.Edges)+1)
		for _, e := range st.Edges {
			ids = append(ids, e.TargetID)
		}
		ids = append(ids, attachmentID)
		groupID, err := m.promote(ctx, task, st.Edges, ids)
		if err != nil {
			return TransitionNone, err
		}
		logger.Debug("Direct attachments promoted to a group.", "group", groupID, "members", len(ids))
		return TransitionPromote, nil

	default:
		if err := m.appendMembers(ctx, task.ID, st.GroupID, attachmentID); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Attachment appended to group.", "group", st.GroupID)
		return TransitionAppend, nil
	}
}

// AttachGroup gives a standalone group to a task. A task that already has
// attachments keeps a single container: direct attachments are moved into
// the adopted group, and an existing container absorbs the adopted group's
// members.
func (m *Manager) AttachGroup(ctx context.Context, taskID, groupID nodeid.ID) (Transition, error) {
	task, err := m.nodeOfKind(taskID, node.KindTask)
	if err != nil {
		return TransitionNone, err
	}
	group, err := m.nodeOfKind(groupID, node.KindGroup)
	if err != nil {
		return TransitionNone, err
	}
	if !group.Group.Standalone() {
		return TransitionNone, fmt.Errorf("%w: group %s already owned by %s", graph.ErrInvalidParent, groupID, group.Group.TaskID)
	}

	st := StateOf(m.g, taskID)
	logger := ctxlog.FromContext(ctx).With("task", taskID, "group", groupID, "state", st.Kind.String())

	if st.Kind == Grouped {
		moved := m.g.MembersOf(groupID)
		ids := make([]nodeid.ID, len(moved))
		for i, n := range moved {
			ids[i] = n.ID
		}
		if err := m.appendMembers(ctx, taskID, st.GroupID, ids...); err != nil {
			return TransitionNone, err
		}
		if err := m.g.RemoveNode(groupID); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Standalone group merged into the task's group.", "into", st.GroupID, "moved", len(ids))
		return TransitionMerge, nil
	}

	for _, e := range st.Edges {
		if err := m.g.RemoveEdge(e.ID); err != nil {
			return TransitionNone, err
		}
	}
	if err := m.own(task, groupID); err != nil {
		return TransitionNone, err
	}
	if err := m.g.MoveNode(groupID, m.cfg.GroupOrigin(task.Position)); err != nil {
		return TransitionNone, err
	}
	ids := make([]nodeid.ID, 0, len(st.Edges))
	for _, e := range st.Edges {
		ids = append(ids, e.TargetID)
	}
	if err := m.appendMembers(ctx, taskID, groupID, ids...); err != nil {
		return TransitionNone, err
	}
	logger.Debug("Standalone group adopted.", "absorbed", len(ids))
	return TransitionAdopt, nil
}

// InsertMember adds a new attachment node to an existing group and reflows
// it. The node's parent and task reference are set from the group.
func (m *Manager) InsertMember(ctx context.Context, groupID nodeid.ID, n node.Node) (Transition, error) {
	group, err := m.nodeOfKind(groupID, node.KindGroup)
	if err != nil {
		return TransitionNone, err
	}
	n.ParentID = groupID
	n.Attachment.TaskRef = group.Group.TaskID
	if err := m.g.AddNode(n); err != nil {
		return TransitionNone, err
	}
	if err := m.Reflow(ctx, groupID); err != nil {
		return TransitionNone, err
	}
	return TransitionAppend, nil
}

// DeleteAttachment removes an attachment and applies the transition its
// removal implies on the owner.
func (m *Manager) DeleteAttachment(ctx context.Context, attachmentID nodeid.ID) (Transition, error) {
	att, err := m.nodeOfKind(attachmentID, node.KindAttachment)
	if err != nil {
		return TransitionNone, err
	}
	if err := m.g.RemoveNode(attachmentID); err != nil {
		return TransitionNone, err
	}
	if !att.HasParent() {
		ctxlog.FromContext(ctx).Debug("Attachment deleted.", "attachment", attachmentID)
		return TransitionDelete, nil
	}
	return m.afterMemberLoss(ctx, att.ParentID)
}

// RemoveMember is DeleteAttachment restricted to group members.
func (m *Manager) RemoveMember(ctx context.Context, groupID, attachmentID nodeid.ID) (Transition, error) {
	att, err := m.nodeOfKind(attachmentID, node.KindAttachment)
	if err != nil {
		return TransitionNone, err
	}
	if att.ParentID != groupID {
		return TransitionNone, fmt.Errorf("%w: %s is not a member of %s", graph.ErrInvalidParent, attachmentID, groupID)
	}
	return m.DeleteAttachment(ctx, attachmentID)
}

// Detach disconnects an attachment from its owner, leaving it freestanding.
// A group member is pulled out below its container at its current canvas
// position.
func (m *Manager) Detach(ctx context.Context, attachmentID nodeid.ID) (Transition, error) {
	att, err := m.nodeOfKind(attachmentID, node.KindAttachment)
	if err != nil {
		return TransitionNone, err
	}
	logger := ctxlog.FromContext(ctx).With("attachment", attachmentID)

	if !att.HasParent() {
		for _, e := range m.g.EdgesTouching(attachmentID) {
			if err := m.g.RemoveEdge(e.ID); err != nil {
				return TransitionNone, err
			}
		}
		if err := m.setTaskRef(attachmentID, nodeid.None); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Direct attachment detached.")
		return TransitionDetach, nil
	}

	groupID := att.ParentID
	group, err := m.nodeOfKind(groupID, node.KindGroup)
	if err != nil {
		return TransitionNone, err
	}
	abs, ok := m.g.Absolute(attachmentID)
	if !ok {
		return TransitionNone, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, attachmentID)
	}
	out := node.Point{X: abs.X, Y: group.Position.Y + group.Group.Size.Height + m.cfg.RowSpacing}
	if err := m.g.Reparent(attachmentID, nodeid.None, out); err != nil {
		return TransitionNone, err
	}
	if err := m.setTaskRef(attachmentID, nodeid.None); err != nil {
		return TransitionNone, err
	}
	logger.Debug("Attachment pulled out of group.", "group", groupID)
	return m.afterMemberLoss(ctx, groupID)
}

// ReleaseTask detaches everything a task owns before the task is deleted or
// disconnected. Its container becomes standalone and direct attachments
// become freestanding; none of them are deleted.
func (m *Manager) ReleaseTask(ctx context.Context, taskID nodeid.ID) (Transition, error) {
	st := StateOf(m.g, taskID)
	for _, e := range st.Edges {
		if err := m.g.RemoveEdge(e.ID); err != nil {
			return TransitionNone, err
		}
		if err := m.setTaskRef(e.TargetID, nodeid.None); err != nil {
			return TransitionNone, err
		}
	}
	if st.Kind == Grouped {
		if _, err := m.Disown(ctx, st.GroupID); err != nil {
			return TransitionNone, err
		}
	}
	if st.Kind == Unattached {
		return TransitionNone, nil
	}
	ctxlog.FromContext(ctx).Debug("Task released its attachments.", "task", taskID, "state", st.Kind.String())
	return TransitionRelease, nil
}

// Disown turns an owned group into a standalone one with a placeholder label.
func (m *Manager) Disown(ctx context.Context, groupID nodeid.ID) (Transition, error) {
	group, err := m.nodeOfKind(groupID, node.KindGroup)
	if err != nil {
		return TransitionNone, err
	}
	for _, e := range m.g.EdgesTouching(groupID) {
		if err := m.g.RemoveEdge(e.ID); err != nil {
			return TransitionNone, err
		}
	}
	if group.Group.Standalone() {
		return TransitionNone, nil
	}
	if err := m.g.UpdateGroup(groupID, func(p *node.GroupPayload) {
		p.TaskID = nodeid.None
		p.Label = PlaceholderLabel
	}); err != nil {
		return TransitionNone, err
	}
	for _, member := range m.g.MembersOf(groupID) {
		if err := m.setTaskRef(member.ID, nodeid.None); err != nil {
			return TransitionNone, err
		}
	}
	ctxlog.FromContext(ctx).Debug("Group is now standalone.", "group", groupID, "previous_owner", group.Group.TaskID)
	return TransitionRelease, nil
}

// DeleteGroup removes a container together with all of its members.
func (m *Manager) DeleteGroup(ctx context.Context, groupID nodeid.ID) (Transition, error) {
	if _, err := m.nodeOfKind(groupID, node.KindGroup); err != nil {
		return TransitionNone, err
	}
	members := m.g.MembersOf(groupID)
	for _, member := range members {
		if err := m.g.RemoveNode(member.ID); err != nil {
			return TransitionNone, err
		}
	}
	if err := m.g.RemoveNode(groupID); err != nil {
		return TransitionNone, err
	}
	ctxlog.FromContext(ctx).Debug("Group deleted.", "group", groupID, "members", len(members))
	return TransitionDelete, nil
}

// Reflow recomputes a container's size and lays its members out in slot
// order.
func (m *Manager) Reflow(ctx context.Context, groupID nodeid.ID) error {
	members := m.g.MembersOf(groupID)
	c := layout.Compute(m.cfg, len(members))
	if err := m.g.UpdateGroup(groupID, func(p *node.GroupPayload) {
		p.MemberCount = len(members)
		p.Size = c.Size
	}); err != nil {
		return err
	}
	for i, member := range members {
		if err := m.g.MoveNode(member.ID, c.Slots[i]); err != nil {
			return err
		}
	}
	ctxlog.FromContext(ctx).Debug("Group reflowed.", "group", groupID, "members", len(members), "width", c.Size.Width, "height", c.Size.Height)
	return nil
}

// afterMemberLoss settles a group that just lost a member: owned groups
// left with one member demote to a direct edge, standalone ones dissolve,
// and larger groups reflow.
func (m *Manager) afterMemberLoss(ctx context.Context, groupID nodeid.ID) (Transition, error) {
	group, err := m.nodeOfKind(groupID, node.KindGroup)
	if err != nil {
		return TransitionNone, err
	}
	members := m.g.MembersOf(groupID)
	logger := ctxlog.FromContext(ctx).With("group", groupID, "members", len(members))

	switch len(members) {
	case 0:
		if err := m.g.RemoveNode(groupID); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Empty group removed.")
		return TransitionDissolve, nil

	case 1:
		last := members[0]
		abs, ok := m.g.Absolute(last.ID)
		if !ok {
			return TransitionNone, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, last.ID)
		}
		if group.Group.Standalone() {
			if err := m.g.Reparent(last.ID, nodeid.None, abs); err != nil {
				return TransitionNone, err
			}
			if err := m.g.RemoveNode(groupID); err != nil {
				return TransitionNone, err
			}
			logger.Debug("Standalone group dissolved.", "attachment", last.ID)
			return TransitionDissolve, nil
		}

		task, err := m.nodeOfKind(group.Group.TaskID, node.KindTask)
		if err != nil {
			return TransitionNone, err
		}
		if err := m.g.Reparent(last.ID, nodeid.None, abs); err != nil {
			return TransitionNone, err
		}
		if err := m.g.RemoveNode(groupID); err != nil {
			return TransitionNone, err
		}
		if err := m.attachDirect(task, last.ID); err != nil {
			return TransitionNone, err
		}
		logger.Debug("Group demoted to a direct attachment.", "task", task.ID, "attachment", last.ID)
		return TransitionDemote, nil

	default:
		if err := m.Reflow(ctx, groupID); err != nil {
			return TransitionNone, err
		}
		return TransitionReflow, nil
	}
}

func (m *Manager) attachDirect(task node.Node, attachmentID nodeid.ID) error {
	if err := m.g.MoveNode(attachmentID, m.cfg.DirectSlot(task.Position)); err != nil {
		return err
	}
	if err := m.setTaskRef(attachmentID, task.ID); err != nil {
		return err
	}
	return m.g.AddEdge(node.Edge{
		ID:         m.newID(),
		SourceID:   task.ID,
		TargetID:   attachmentID,
		SourcePort: node.PortAttach,
		TargetPort: node.PortAttach,
		Kind:       node.EdgeAttachment,
	})
}

// promote replaces direct edges with a new container holding ids in order.
func (m *Manager) promote(ctx context.Context, task node.Node, direct []node.Edge, ids []nodeid.ID) (nodeid.ID, error) {
	for _, e := range direct {
		if err := m.g.RemoveEdge(e.ID); err != nil {
			return nodeid.None, err
		}
	}
	group := node.NewGroup(m.newID(), m.cfg.GroupOrigin(task.Position), node.GroupPayload{
		Size: layout.Compute(m.cfg, 0).Size,
	})
	if err := m.g.AddNode(group); err != nil {
		return nodeid.None, err
	}
	if err := m.own(task, group.ID); err != nil {
		return nodeid.None, err
	}
	if err := m.appendMembers(ctx, task.ID, group.ID, ids...); err != nil {
		return nodeid.None, err
	}
	return group.ID, nil
}

// own labels a group for the task and joins them with a group edge.
func (m *Manager) own(task node.Node, groupID nodeid.ID) error {
	if err := m.g.UpdateGroup(groupID, func(p *node.GroupPayload) {
		p.TaskID = task.ID
		p.Label = GroupLabel(task)
	}); err != nil {
		return err
	}
	return m.g.AddEdge(node.Edge{
		ID:         m.newID(),
		SourceID:   task.ID,
		TargetID:   groupID,
		SourcePort: node.PortAttach,
		TargetPort: node.PortAttach,
		Kind:       node.EdgeGroup,
	})
}

// appendMembers moves attachments to the end of a group, points them at
// the owner and reflows. Existing members of the group also get ownerID.
func (m *Manager) appendMembers(ctx context.Context, ownerID, groupID nodeid.ID, ids ...nodeid.ID) error {
	for _, id := range ids {
		for _, e := range m.g.EdgesTouching(id) {
			if err := m.g.RemoveEdge(e.ID); err != nil {
				return err
			}
		}
		if err := m.g.Reparent(id, groupID, node.Point{}); err != nil {
			return err
		}
	}
	for _, member := range m.g.MembersOf(groupID) {
		if err := m.setTaskRef(member.ID, ownerID); err != nil {
			return err
		}
	}
	return m.Reflow(ctx, groupID)
}

func (m *Manager) setTaskRef(attachmentID, taskID nodeid.ID) error {
	return m.g.UpdateAttachment(attachmentID, func(p *node.AttachmentPayload) { p.TaskRef = taskID })
}

func (m *Manager) nodeOfKind(id nodeid.ID, kind node.Kind) (node.Node, error) {
	n, ok := m.g.Node(id)
	if !ok {
		return node.Node{}, fmt.Errorf("%w: node %s", graph.ErrReferenceMissing, id)
	}
	if n.Kind != kind {
		return node.Node{}, fmt.Errorf("%w: %s is a %s, want %s", ErrWrongKind, id, n.Kind, kind)
	}
	return n, nil
}
