// Package admin exposes the operator gRPC surface: standard health checking and
// a small RaidAdmin service that reports live rooms and recent raid results.
//
// RaidAdmin is declared by hand with well-known protobuf types, so it needs no
// generated code:
//
//	service RaidAdmin {
//	  rpc ListRooms(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc GetRoom(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc RecentRaids(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
package admin

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/raid/internal/gameserver"
	"github.com/cory-johannsen/raid/internal/storage/postgres"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "raid.admin.v1.RaidAdmin"

const (
	methodListRooms   = "/" + ServiceName + "/ListRooms"
	methodGetRoom     = "/" + ServiceName + "/GetRoom"
	methodRecentRaids = "/" + ServiceName + "/RecentRaids"
)

// RaidAdminServer is the server API for the RaidAdmin service.
type RaidAdminServer interface {
	ListRooms(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentRaids(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RoomLister reports live rooms.
type RoomLister interface {
	Stats() []gameserver.RoomStats
}

// History reads persisted raid results.
type History interface {
	RecentRaids(ctx context.Context, limit int) ([]postgres.RaidRecord, error)
}

var _ RaidAdminServer = (*Service)(nil)

// Service implements RaidAdminServer over a room registry and optional history.
type Service struct {
	rooms   RoomLister
	history History
}

// NewService creates the RaidAdmin implementation.
//
// Precondition: rooms must be non-nil. history may be nil when persistence is disabled.
func NewService(rooms RoomLister, history History) *Service {
	if rooms == nil {
		panic("admin.NewService: rooms must be non-nil")
	}
	return &Service{rooms: rooms, history: history}
}

// ListRooms returns {"rooms": [...], "count": n}, rooms sorted by code.
func (s *Service) ListRooms(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.rooms.Stats()
	rooms := make([]any, 0, len(stats))
	for _, st := range stats {
		rooms = append(rooms, roomFields(st))
	}
	return newStruct(map[string]any{
		"rooms": rooms,
		"count": len(stats),
	})
}

// GetRoom returns the room whose code matches {"code": "..."}.
func (s *Service) GetRoom(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := strings.ToUpper(strings.TrimSpace(req.GetFields()["code"].GetStringValue()))
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}
	for _, st := range s.rooms.Stats() {
		if st.Code == code {
			return newStruct(roomFields(st))
		}
	}
	return nil, status.Errorf(codes.NotFound, "room %s not found", code)
}

// RecentRaids returns {"raids": [...]} for the newest persisted raids. The
// optional "limit" field caps the result.
func (s *Service) RecentRaids(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.history == nil {
		return nil, status.Error(codes.Unavailable, "raid persistence is disabled")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	records, err := s.history.RecentRaids(ctx, limit)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "listing raids: %v", err)
	}
	raids := make([]any, 0, len(records))
	for _, rec := range records {
		raids = append(raids, raidFields(rec))
	}
	return newStruct(map[string]any{"raids": raids})
}

func roomFields(st gameserver.RoomStats) map[string]any {
	fields := map[string]any{
		"id":        st.ID,
		"code":      st.Code,
		"status":    string(st.Status),
		"players":   st.Players,
		"capacity":  st.Capacity,
		"host":      st.HostID,
		"errored":   st.Errored,
		"createdAt": st.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !st.StartedAt.IsZero() {
		fields["startedAt"] = st.StartedAt.UTC().Format(time.RFC3339)
	}
	return fields
}

func raidFields(rec postgres.RaidRecord) map[string]any {
	players := make([]any, 0, len(rec.Summary.Players))
	for _, p := range rec.Summary.Players {
		players = append(players, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"character": string(p.Character),
			"damage":    p.Damage,
			"healing":   p.Healing,
			"level":     p.Level,
			"alive":     p.Alive,
		})
	}
	return map[string]any{
		"id":           float64(rec.ID),
		"roomId":       rec.RoomID,
		"code":         rec.Code,
		"winner":       string(rec.Summary.Winner),
		"endedAt":      rec.Summary.EndedAt.UTC().Format(time.RFC3339),
		"duration":     rec.Summary.Duration,
		"bossDamage":   rec.Summary.BossDamage,
		"barsDefeated": rec.Summary.BarsDefeated,
		"players":      players,
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return st, nil
}

// RegisterRaidAdminServer registers srv on s.
func RegisterRaidAdminServer(s grpc.ServiceRegistrar, srv RaidAdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the RaidAdmin service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RaidAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "GetRoom", Handler: getRoomHandler},
		{MethodName: "RecentRaids", Handler: recentRaidsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raid/admin/v1/admin.proto",
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaidAdminServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListRooms}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RaidAdminServer).ListRooms(ctx, req.(*emptypb.Empty))
	})
}

func getRoomHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaidAdminServer).GetRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetRoom}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RaidAdminServer).GetRoom(ctx, req.(*structpb.Struct))
	})
}

func recentRaidsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaidAdminServer).RecentRaids(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRecentRaids}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RaidAdminServer).RecentRaids(ctx, req.(*structpb.Struct))
	})
}

// Client is a RaidAdmin client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ListRooms calls RaidAdmin.ListRooms.
func (c *Client) ListRooms(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListRooms, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoom calls RaidAdmin.GetRoom for code.
func (c *Client) GetRoom(ctx context.Context, code string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"code": code})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetRoom, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentRaids calls RaidAdmin.RecentRaids.
func (c *Client) RecentRaids(ctx context.Context, limit int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRecentRaids, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
