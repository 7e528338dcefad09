package echonet_lite

import (
	"fmt"
	"net/netip"
)

// ECHONET Lite 資料
// https://echonet.jp/spec_g/
//  https://echonet.jp/spec_v114_lite/ (ECHONET Lite)
//  https://echonet.jp/spec_object_rr2/ (ECHONET Liteオブジェクト)

const (
	EHD_ECHONETLite EHDType = 0x1081 // ECHONET Liteのヘッダ (電文形式1)

	ECHONETLitePort = 3610 // ECHONET Liteのポート番号
)

// ECHONETLiteMulticast は ECHONET Lite の IPv4 マルチキャストグループです。
var ECHONETLiteMulticast = netip.AddrPortFrom(netip.AddrFrom4([4]byte{224, 0, 23, 0}), ECHONETLitePort)

type EHDType uint16

func (e EHDType) String() string {
	switch e {
	case EHD_ECHONETLite:
		return "ECHONET Lite"
	default:
		return fmt.Sprintf("(%X)", uint16(e))
	}
}

// TIDType はトランザクションIDです。16ビットで、折り返しを許容します。
type TIDType uint16

type ESVType byte

const (
	ESVSetI    ESVType = 0x60 // SetI プロパティ値書き込み要求（応答不要）
	ESVSetC    ESVType = 0x61 // SetC プロパティ値書き込み要求（応答要）
	ESVGet     ESVType = 0x62 // Get プロパティ値読み出し要求
	ESVINF_REQ ESVType = 0x63 // INF_REQ プロパティ値通知要求
	ESVSetGet  ESVType = 0x6e // SetGet プロパティ値書き込み・読み出し要求

	ESVSet_Res    ESVType = 0x71 // Set_Res プロパティ値書き込み応答
	ESVGet_Res    ESVType = 0x72 // Get_Res プロパティ値読み出し応答
	ESVINF        ESVType = 0x73 // INF プロパティ値通知
	ESVINFC       ESVType = 0x74 // INFC プロパティ値通知（応答要）
	ESVINFC_Res   ESVType = 0x7a // INFC_Res プロパティ値通知応答
	ESVSetGet_Res ESVType = 0x7e // SetGet_Res プロパティ値書き込み・読み出し応答

	ESVSetI_SNA    ESVType = 0x50 // SetI_SNA プロパティ値書き込み要求不可応答
	ESVSetC_SNA    ESVType = 0x51 // SetC_SNA プロパティ値書き込み要求不可応答
	ESVGet_SNA     ESVType = 0x52 // Get_SNA プロパティ値読み出し要求不可応答
	ESVINF_REQ_SNA ESVType = 0x53 // INF_REQ_SNA プロパティ値通知要求不可応答
	ESVSetGet_SNA  ESVType = 0x5e // SetGet_SNA プロパティ値書き込み・読み出し要求不可応答
)

var esvNames = map[ESVType]string{
	ESVSetI: "SetI", ESVSetC: "SetC", ESVGet: "Get", ESVINF_REQ: "INF_REQ", ESVSetGet: "SetGet",
	ESVSet_Res: "Set_Res", ESVGet_Res: "Get_Res", ESVINF: "INF", ESVINFC: "INFC",
	ESVINFC_Res: "INFC_Res", ESVSetGet_Res: "SetGet_Res",
	ESVSetI_SNA: "SetI_SNA", ESVSetC_SNA: "SetC_SNA", ESVGet_SNA: "Get_SNA",
	ESVINF_REQ_SNA: "INF_REQ_SNA", ESVSetGet_SNA: "SetGet_SNA",
}

func (e ESVType) String() string {
	if name, ok := esvNames[e]; ok {
		return name
	}
	return fmt.Sprintf("(%X)", byte(e))
}

// IsSNA は不可応答(0x5X)かどうかを返します。
func (e ESVType) IsSNA() bool {
	return e&0xf0 == 0x50
}

// ISSetGet は SetGet 系のサービス(要求・応答・不可応答)かどうかを返します。
func (e ESVType) ISSetGet() bool {
	return e == ESVSetGet || e == ESVSetGet_Res || e == ESVSetGet_SNA
}

// IsRequest は相手に応答を求める要求(0x6X)かどうかを返します。
func (e ESVType) IsRequest() bool {
	return e&0xf0 == 0x60
}
